// db/repo_admin.go
package db

import (
	"Gin_postgres_redis_library/models"
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
)

type AdminBorrowRow struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	BorrowedAt time.Time  `json:"borrowedAt"`
	DueDate    time.Time  `json:"dueDate"`
	ReturnDate *time.Time `json:"returnDate,omitempty"`

	BookID     string `json:"bookId"`
	BookTitle  string `json:"bookTitle"`
	BookAuthor string `json:"bookAuthor"`

	UserID       string `json:"userId"`
	UserFullName string `json:"userFullName"`
	UserEmail    string `json:"userEmail"`

	Overdue     bool `json:"overdue"`     // 由 SQL 计算
	DaysOverdue int  `json:"daysOverdue"` // 由 SQL 计算
}

type AdminBorrowsQuery struct {
	Q      string // 模糊搜索：书名/邮箱/姓名
	Status string // "", "borrowed", "returned", "overdue"
	Page   int
	Size   int
	Today  time.Time
}

type PagedAdminBorrows struct {
	Total int64            `json:"total"`
	Rows  []AdminBorrowRow `json:"rows"`
}

const adminBorrowSelect = `
	r.id, r.status, r.borrowed_at, r.due_date, r.return_date,
	b.id    AS book_id,
	b.title AS book_title,
	b.author AS book_author,
	u.id        AS user_id,
	u.full_name AS user_full_name,
	u.email     AS user_email,
	CASE WHEN r.status = 'BORROWED' AND r.due_date < ? THEN TRUE ELSE FALSE END AS overdue,
	CASE WHEN r.status = 'BORROWED' AND r.due_date < ? THEN (?::date - r.due_date) ELSE 0 END AS days_overdue`

func (r *Repo) ListBorrowsAdmin(ctx context.Context, q AdminBorrowsQuery) (*PagedAdminBorrows, error) {
	page, size := clampPage(q.Page, q.Size, 500)
	today := q.Today
	if today.IsZero() {
		today = time.Now()
	}
	day := today.Format(dateLayout)

	base := r.DB.WithContext(ctx).Session(&gorm.Session{}).
		Table(models.BorrowTable+" r").
		Joins("JOIN "+models.BookTable+" b ON b.id = r.book_id").
		Joins("JOIN "+models.UserTable+" u ON u.id = r.user_id")

	if s := strings.TrimSpace(q.Q); s != "" {
		pat := "%" + strings.ToLower(s) + "%"
		base = base.Where("LOWER(b.title) LIKE ? OR LOWER(u.email) LIKE ? OR LOWER(u.full_name) LIKE ?", pat, pat, pat)
	}
	switch q.Status {
	case "borrowed":
		base = base.Where("r.status = ?", models.BorrowBorrowed)
	case "returned":
		base = base.Where("r.status = ?", models.BorrowReturned)
	case "overdue":
		base = base.Where("r.status = ? AND r.due_date < ?", models.BorrowBorrowed, day)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []AdminBorrowRow
	if err := base.
		Select(adminBorrowSelect, day, day, day).
		Order("r.borrowed_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return &PagedAdminBorrows{Total: total, Rows: rows}, nil
}

type DashboardStats struct {
	Users        int64 `json:"users"`
	PendingUsers int64 `json:"pendingUsers"`
	Books        int64 `json:"books"`
	Borrowed     int64 `json:"borrowed"`
	Overdue      int64 `json:"overdue"`
	EmailsSent   int64 `json:"emailsSent"`
	EmailsFailed int64 `json:"emailsFailed"`
}

func (r *Repo) DashboardStats(ctx context.Context, today time.Time) (*DashboardStats, error) {
	db := r.DB.WithContext(ctx)
	day := today.Format(dateLayout)
	var s DashboardStats

	counts := []struct {
		dst   *int64
		model any
		where string
		args  []any
	}{
		{&s.Users, &models.User{}, "", nil},
		{&s.PendingUsers, &models.User{}, "status = ?", []any{models.UserPending}},
		{&s.Books, &models.Book{}, "", nil},
		{&s.Borrowed, &models.BorrowRecord{}, "status = ?", []any{models.BorrowBorrowed}},
		{&s.Overdue, &models.BorrowRecord{}, "status = ? AND due_date < ?", []any{models.BorrowBorrowed, day}},
		{&s.EmailsSent, &models.EmailLog{}, "status = ?", []any{models.EmailSent}},
		{&s.EmailsFailed, &models.EmailLog{}, "status = ?", []any{models.EmailFailed}},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where, c.args...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}
	return &s, nil
}
