package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/models"
	"Gin_postgres_redis_library/notify"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

type AdminController struct {
	*Srv
	now func() time.Time
}

func NewAdminController(s *Srv) *AdminController { return &AdminController{Srv: s, now: time.Now} }

// GET /api/admin/stats
func (ac *AdminController) Stats(c *gin.Context) {
	st, err := ac.Repo.DashboardStats(c.Request.Context(), ac.now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"stats": st})
}

func (ac *AdminController) borrowsQuery(c *gin.Context) db.AdminBorrowsQuery {
	q := db.AdminBorrowsQuery{
		Q:      c.Query("q"),
		Status: c.Query("status"), // "", "borrowed", "returned", "overdue"
		Today:  ac.now().UTC(),
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.Size, _ = strconv.Atoi(c.DefaultQuery("size", "20"))
	return q
}

// GET /api/admin/borrows?q=&status=&page=&size=
func (ac *AdminController) ListBorrows(c *gin.Context) {
	res, err := ac.Repo.ListBorrowsAdmin(c.Request.Context(), ac.borrowsQuery(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/admin/borrows/export?q=&status=
func (ac *AdminController) ExportBorrows(c *gin.Context) {
	q := ac.borrowsQuery(c)
	q.Size = 500

	var rows []db.AdminBorrowRow
	for q.Page = 1; ; q.Page++ {
		res, err := ac.Repo.ListBorrowsAdmin(c.Request.Context(), q)
		if err != nil {
			c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
			return
		}
		rows = append(rows, res.Rows...)
		if len(res.Rows) < q.Size || int64(len(rows)) >= res.Total {
			break
		}
	}

	f, err := borrowsWorkbook(rows, ac.Cfg.FinePerDay)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	defer f.Close()

	name := fmt.Sprintf("borrows-%s.xlsx", ac.now().UTC().Format("20060102"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	if err := f.Write(c.Writer); err != nil {
		ac.Log.Error("write xlsx", "err", err)
	}
}

const borrowsSheet = "Borrows"

var borrowsHeader = []any{
	"Record ID", "Status", "Borrowed At", "Due Date", "Return Date",
	"Book", "Author", "Member", "Email", "Overdue", "Days Overdue", "Penalty",
}

func borrowsWorkbook(rows []db.AdminBorrowRow, rate float64) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", borrowsSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(borrowsSheet, "A1", &borrowsHeader); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(borrowsSheet, "A1", "L1", bold); err != nil {
		return nil, err
	}

	for i, r := range rows {
		ret := ""
		if r.ReturnDate != nil {
			ret = r.ReturnDate.Format("2006-01-02")
		}
		penalty := 0.0
		if r.Overdue {
			penalty = notify.Penalty(r.DaysOverdue, rate)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{
			r.ID, r.Status, r.BorrowedAt.UTC().Format(time.RFC3339), r.DueDate.Format("2006-01-02"), ret,
			r.BookTitle, r.BookAuthor, r.UserFullName, r.UserEmail, r.Overdue, r.DaysOverdue, penalty,
		}
		if err := f.SetSheetRow(borrowsSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(borrowsSheet, "A", "A", 38)
	_ = f.SetColWidth(borrowsSheet, "B", "L", 16)
	return f, nil
}

// GET /api/admin/emails?recipient=&type=&status=&triggerId=&page=&size=
func (ac *AdminController) ListEmailLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "50"))
	res, err := ac.Repo.ListEmailLogs(c.Request.Context(), db.EmailLogQuery{
		Recipient: c.Query("recipient"),
		Type:      models.EmailType(c.Query("type")),
		Status:    models.EmailStatus(c.Query("status")),
		TriggerID: c.Query("triggerId"),
		Page:      page,
		Size:      size,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
