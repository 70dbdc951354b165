package models

import "time"

const BorrowTable = "lib_borrow_records"

type BorrowStatus string

const (
	BorrowBorrowed BorrowStatus = "BORROWED"
	BorrowReturned BorrowStatus = "RETURNED"
)

// BorrowRecord is one loan of a book to a user.
// ReturnDate is set exactly when Status is RETURNED.
type BorrowRecord struct {
	ID         string       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string       `gorm:"type:uuid;index;not null" json:"userId"`
	BookID     string       `gorm:"type:uuid;index;not null" json:"bookId"`
	BorrowedAt time.Time    `gorm:"not null;index" json:"borrowedAt"`
	DueDate    time.Time    `gorm:"type:date;not null" json:"dueDate"`
	ReturnDate *time.Time   `gorm:"type:date" json:"returnDate,omitempty"`
	Status     BorrowStatus `gorm:"size:16;not null;default:'BORROWED'" json:"status"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Book *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (BorrowRecord) TableName() string { return BorrowTable }

func (b *BorrowRecord) Returned() bool { return b.Status == BorrowReturned }
