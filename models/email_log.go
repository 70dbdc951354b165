package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const EmailLogTable = "lib_email_logs"

type EmailType string

const (
	EmailWelcome            EmailType = "WELCOME"
	EmailAccountApproved    EmailType = "ACCOUNT_APPROVED"
	EmailBorrowConfirmation EmailType = "BORROW_CONFIRMATION"
	EmailDueReminder        EmailType = "DUE_REMINDER"
	EmailDueToday           EmailType = "DUE_TODAY"
	EmailOverdueNotice      EmailType = "OVERDUE_NOTICE"
	EmailReturnConfirmation EmailType = "RETURN_CONFIRMATION"
)

type EmailStatus string

const (
	EmailSent    EmailStatus = "SENT"
	EmailFailed  EmailStatus = "FAILED"
	EmailPending EmailStatus = "PENDING"
)

// EmailMeta is stored as meta_* columns. TriggerID together with the
// recipient and RecordID is unique across the log.
type EmailMeta struct {
	TriggerID   string  `gorm:"size:128;not null;default:''" json:"triggerId"`
	RecordID    string  `gorm:"size:64;not null;default:''" json:"recordId,omitempty"`
	DaysOverdue int     `gorm:"not null;default:0" json:"daysOverdue,omitempty"`
	Penalty     float64 `gorm:"not null;default:0" json:"penalty,omitempty"`
}

// EmailLog is append-only: one row per send attempt.
type EmailLog struct {
	ID           string      `gorm:"type:uuid;primaryKey" json:"id"`
	Recipient    string      `gorm:"size:255;not null;index" json:"recipient"`
	Type         EmailType   `gorm:"size:32;not null;index" json:"type"`
	Status       EmailStatus `gorm:"size:16;not null" json:"status"`
	Subject      string      `gorm:"size:255;not null" json:"subject"`
	ErrorMessage *string     `gorm:"type:text" json:"errorMessage,omitempty"`
	Meta         EmailMeta   `gorm:"embedded;embeddedPrefix:meta_" json:"metadata"`
	CreatedAt    time.Time   `json:"createdAt"`
}

func (EmailLog) TableName() string { return EmailLogTable }

func (l *EmailLog) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
