package db

import (
	"context"
	"errors"
	"time"

	"Gin_postgres_redis_library/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 借书：原子操作 = 锁住 book → 校验库存/重复借阅 → 扣减库存 → 新建记录
func (r *Repo) BorrowBook(ctx context.Context, userID, bookID string, borrowedAt, dueDate time.Time) (*models.BorrowRecord, error) {
	var rec *models.BorrowRecord
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1) 锁住该书
		var b models.Book
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&b, "id = ?", bookID).Error; err != nil {
			return mapErr(err)
		}
		if b.AvailableCopies <= 0 {
			return ErrNoCopies
		}
		// 2) 同一用户不能重复借同一本未还的书（部分唯一索引兜底）
		var n int64
		if err := tx.Model(&models.BorrowRecord{}).
			Where("user_id = ? AND book_id = ? AND status = ?", userID, bookID, models.BorrowBorrowed).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyBorrowed
		}
		// 3) 扣减库存
		if err := tx.Model(&models.Book{}).
			Where("id = ? AND available_copies > 0", bookID).
			Update("available_copies", gorm.Expr("available_copies - 1")).Error; err != nil {
			return err
		}
		// 4) 新建借阅记录
		rec = &models.BorrowRecord{
			ID:         uuid.NewString(),
			UserID:     userID,
			BookID:     bookID,
			BorrowedAt: borrowedAt.UTC(),
			DueDate:    dueDate,
			Status:     models.BorrowBorrowed,
		}
		if err := tx.Create(rec).Error; err != nil {
			if IsUniqueViolation(err) {
				return ErrAlreadyBorrowed
			}
			return err
		}
		b.AvailableCopies--
		rec.Book = &b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// 归还：原子操作 = 完成记录 → 归还库存。已归还则直接返回（幂等），
// returned 为 false 表示本次调用没有改变任何状态。
func (r *Repo) ReturnBorrow(ctx context.Context, recordID, userID string, returnDate time.Time) (rec *models.BorrowRecord, returned bool, err error) {
	var l models.BorrowRecord
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&l, "id = ?", recordID).Error; err != nil {
			return mapErr(err)
		}
		if userID != "" && l.UserID != userID {
			return ErrNotOwner
		}
		if l.Returned() {
			return nil
		}
		l.ReturnDate = &returnDate
		l.Status = models.BorrowReturned
		if err := tx.Model(&models.BorrowRecord{}).
			Where("id = ?", l.ID).
			Updates(map[string]any{
				"return_date": returnDate,
				"status":      models.BorrowReturned,
				"updated_at":  time.Now(),
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Book{}).
			Where("id = ?", l.BookID).
			Update("available_copies", gorm.Expr("LEAST(available_copies + 1, total_copies)")).Error; err != nil {
			return err
		}
		returned = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	full, err := r.GetBorrow(ctx, l.ID)
	if err != nil {
		return nil, false, err
	}
	return full, returned, nil
}

// GetBorrow loads a record with its user and book.
func (r *Repo) GetBorrow(ctx context.Context, id string) (*models.BorrowRecord, error) {
	var l models.BorrowRecord
	if err := r.DB.WithContext(ctx).
		Preload("User").
		Preload("Book").
		First(&l, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &l, nil
}

func (r *Repo) ListUserBorrows(ctx context.Context, userID string, status models.BorrowStatus) ([]models.BorrowRecord, error) {
	q := r.DB.WithContext(ctx).
		Preload("Book").
		Where("user_id = ?", userID).
		Order("borrowed_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var ls []models.BorrowRecord
	if err := q.Find(&ls).Error; err != nil {
		return nil, err
	}
	return ls, nil
}

// due_date is a DATE column; compare against plain calendar strings so the
// session time zone never shifts the boundary. Ranges are half-open so a
// driver that stores the date with a time part still matches the last day.
const dateLayout = "2006-01-02"

// ListActiveDueBetween returns open records whose due date is in [from, to].
func (r *Repo) ListActiveDueBetween(ctx context.Context, from, to time.Time) ([]models.BorrowRecord, error) {
	return r.listActive(ctx, "due_date >= ? AND due_date < ?",
		from.Format(dateLayout), to.AddDate(0, 0, 1).Format(dateLayout))
}

// ListActiveDueBefore returns open records whose due date is strictly before day.
func (r *Repo) ListActiveDueBefore(ctx context.Context, day time.Time) ([]models.BorrowRecord, error) {
	return r.listActive(ctx, "due_date < ?", day.Format(dateLayout))
}

func (r *Repo) listActive(ctx context.Context, cond string, args ...any) ([]models.BorrowRecord, error) {
	var ls []models.BorrowRecord
	err := r.DB.WithContext(ctx).
		Preload("User").
		Preload("Book").
		Where("status = ? AND return_date IS NULL", models.BorrowBorrowed).
		Where(cond, args...).
		Order("due_date ASC, id ASC").
		Find(&ls).Error
	if err != nil {
		return nil, err
	}
	// 关联被删时跳过，避免向空地址发信
	out := ls[:0]
	for _, l := range ls {
		if l.User != nil && l.Book != nil {
			out = append(out, l)
		}
	}
	return out, nil
}

// IsNotFound is a small helper for controllers.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
