package controllers

import (
	"context"
	"net/http"
	"time"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/models"
	"Gin_postgres_redis_library/notify"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BorrowController struct {
	*Srv
	now func() time.Time
}

func NewBorrowController(s *Srv) *BorrowController { return &BorrowController{Srv: s, now: time.Now} }

// borrowView adds the live overdue figures to a record.
type borrowView struct {
	models.BorrowRecord
	Overdue     bool    `json:"overdue"`
	DaysOverdue int     `json:"daysOverdue"`
	Penalty     float64 `json:"penalty"`
}

func viewOf(r models.BorrowRecord, today time.Time, rate float64) borrowView {
	v := borrowView{BorrowRecord: r}
	if r.Status == models.BorrowBorrowed {
		v.DaysOverdue = notify.DaysOverdue(r.DueDate, today)
		v.Overdue = v.DaysOverdue > 0
		v.Penalty = notify.Penalty(v.DaysOverdue, rate)
	}
	return v
}

// 借书：只有审核通过的用户可以借
// POST /api/books/:id/borrow
func (bc *BorrowController) Borrow(c *gin.Context) {
	bookID := c.Param("id")
	if _, err := uuid.Parse(bookID); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid book id"})
		return
	}
	u, ok := app.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}

	now := bc.now().UTC()
	due := notify.Day(now).AddDate(0, 0, bc.Cfg.LoanDays)
	rec, err := bc.Repo.BorrowBook(c.Request.Context(), u.ID, bookID, now, due)
	if err != nil {
		fail(c, err)
		return
	}
	rec.User = u

	bc.Notifier.Go(c.Request.Context(), "borrow confirmation", func(ctx context.Context) error {
		return bc.Notifier.BorrowConfirmation(ctx, rec)
	})
	c.JSON(http.StatusCreated, app.H{"record": viewOf(*rec, now, bc.Cfg.FinePerDay)})
}

// 还书：幂等，重复调用不会重复发信
// POST /api/borrows/:id/return
func (bc *BorrowController) Return(c *gin.Context) {
	recordID := c.Param("id")
	if _, err := uuid.Parse(recordID); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid record id"})
		return
	}
	userID := app.UserID(c)
	// 管理员可以替任何人还书
	if u, ok := app.CurrentUser(c); ok && u.IsAdmin() {
		userID = ""
	}

	now := bc.now().UTC()
	rec, returned, err := bc.Repo.ReturnBorrow(c.Request.Context(), recordID, userID, notify.Day(now))
	if err != nil {
		fail(c, err)
		return
	}
	if returned {
		bc.Notifier.Go(c.Request.Context(), "return confirmation", func(ctx context.Context) error {
			return bc.Notifier.ReturnConfirmation(ctx, rec)
		})
	}
	c.JSON(http.StatusOK, app.H{"record": viewOf(*rec, now, bc.Cfg.FinePerDay), "returned": returned})
}

// GET /api/borrows/me?status=BORROWED|RETURNED
func (bc *BorrowController) MyBorrows(c *gin.Context) {
	status := models.BorrowStatus(c.Query("status"))
	switch status {
	case "", models.BorrowBorrowed, models.BorrowReturned:
	default:
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid status"})
		return
	}
	ls, err := bc.Repo.ListUserBorrows(c.Request.Context(), app.UserID(c), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	today := bc.now()
	out := make([]borrowView, 0, len(ls))
	for _, r := range ls {
		out = append(out, viewOf(r, today, bc.Cfg.FinePerDay))
	}
	c.JSON(http.StatusOK, app.H{"records": out})
}
