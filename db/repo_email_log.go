package db

import (
	"Gin_postgres_redis_library/models"
	"context"
	"fmt"
	"strings"
)

// HasTriggerLog reports whether triggerID already logged an email to recipient
// about recordID.
func (r *Repo) HasTriggerLog(ctx context.Context, recipient, triggerID, recordID string) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.EmailLog{}).
		Where("recipient = ? AND meta_trigger_id = ? AND meta_record_id = ?",
			strings.ToLower(strings.TrimSpace(recipient)), triggerID, recordID).
		Count(&n).Error
	return n > 0, err
}

// InsertEmailLog appends one row. A (recipient, trigger, record) conflict
// returns ErrDuplicate.
func (r *Repo) InsertEmailLog(ctx context.Context, l *models.EmailLog) error {
	l.Recipient = strings.ToLower(strings.TrimSpace(l.Recipient))
	if err := r.DB.WithContext(ctx).Create(l).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

type EmailLogQuery struct {
	Recipient string
	Type      models.EmailType
	Status    models.EmailStatus
	TriggerID string
	Page      int
	Size      int
}

type PagedEmailLogs struct {
	Total int64             `json:"total"`
	Logs  []models.EmailLog `json:"logs"`
}

func (r *Repo) ListEmailLogs(ctx context.Context, q EmailLogQuery) (*PagedEmailLogs, error) {
	page, size := clampPage(q.Page, q.Size, 200)

	tx := r.DB.WithContext(ctx).Model(&models.EmailLog{})
	if s := strings.TrimSpace(q.Recipient); s != "" {
		tx = tx.Where("recipient = ?", strings.ToLower(s))
	}
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if q.TriggerID != "" {
		tx = tx.Where("meta_trigger_id = ?", q.TriggerID)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}
	var logs []models.EmailLog
	if err := tx.Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return &PagedEmailLogs{Total: total, Logs: logs}, nil
}
