package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{db.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("borrow: %w", db.ErrNoCopies), http.StatusConflict},
		{db.ErrAlreadyBorrowed, http.StatusConflict},
		{db.ErrNotOwner, http.StatusForbidden},
		{db.ErrDuplicate, http.StatusConflict},
		{db.ErrHasHistory, http.StatusConflict},
		{errors.New("conn reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		code, msg := repoStatus(tc.err)
		assert.Equal(t, tc.code, code, tc.err.Error())
		assert.NotEmpty(t, msg)
	}
}

func TestImageExt(t *testing.T) {
	ext, ok := imageExt([]byte("\x89PNG\r\n\x1a\n0000"))
	assert.True(t, ok)
	assert.Equal(t, ".png", ext)

	ext, ok = imageExt([]byte("\xff\xd8\xff\xe0"))
	assert.True(t, ok)
	assert.Equal(t, ".jpg", ext)

	_, ok = imageExt([]byte("GIF89a"))
	assert.False(t, ok)
	_, ok = imageExt([]byte("<html></html>"))
	assert.False(t, ok)
}

func TestViewOf(t *testing.T) {
	today := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	rec := models.BorrowRecord{
		ID:      "r1",
		Status:  models.BorrowBorrowed,
		DueDate: time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
	}

	v := viewOf(rec, today, 0.5)
	assert.True(t, v.Overdue)
	assert.Equal(t, 3, v.DaysOverdue)
	assert.Equal(t, 1.5, v.Penalty)

	// due today is not overdue yet
	rec.DueDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	v = viewOf(rec, today, 0.5)
	assert.False(t, v.Overdue)
	assert.Zero(t, v.Penalty)

	// returned books carry no live penalty
	rec.DueDate = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rec.Status = models.BorrowReturned
	v = viewOf(rec, today, 0.5)
	assert.False(t, v.Overdue)
	assert.Zero(t, v.DaysOverdue)
}

func TestBorrowsWorkbook(t *testing.T) {
	ret := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	rows := []db.AdminBorrowRow{
		{
			ID: "r1", Status: "BORROWED",
			BorrowedAt: time.Date(2026, 2, 28, 9, 30, 0, 0, time.UTC),
			DueDate:    time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
			BookTitle:  "Dune", BookAuthor: "Frank Herbert",
			UserFullName: "Ann Reader", UserEmail: "ann@example.com",
			Overdue: true, DaysOverdue: 3,
		},
		{
			ID: "r2", Status: "RETURNED",
			BorrowedAt: time.Date(2026, 2, 20, 9, 30, 0, 0, time.UTC),
			DueDate:    time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC),
			ReturnDate: &ret,
			BookTitle:  "Emma",
			UserEmail:  "bob@example.com",
		},
	}

	f, err := borrowsWorkbook(rows, 0.5)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{borrowsSheet}, f.GetSheetList())

	cell := func(ref string) string {
		v, err := f.GetCellValue(borrowsSheet, ref)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Record ID", cell("A1"))
	assert.Equal(t, "Penalty", cell("L1"))

	assert.Equal(t, "r1", cell("A2"))
	assert.Equal(t, "2026-03-07", cell("D2"))
	assert.Equal(t, "", cell("E2"))
	assert.Equal(t, "ann@example.com", cell("I2"))
	assert.Equal(t, "3", cell("K2"))
	assert.Equal(t, "1.5", cell("L2"))

	assert.Equal(t, "2026-03-05", cell("E3"))
	assert.Equal(t, "0", cell("L3"))
}

func TestAdminUserRoutesRejectBadID(t *testing.T) {
	uc := GetUserController(&Srv{})
	r := gin.New()
	r.GET("/users/:id", uc.GetUser)
	r.POST("/users/:id/approve", uc.Approve)
	r.POST("/users/:id/reject", uc.Reject)
	r.PUT("/users/:id/role", uc.SetRole)
	r.DELETE("/users/:id", uc.DeleteUser)

	cases := []struct{ method, path, body string }{
		{http.MethodGet, "/users/42", ""},
		{http.MethodPost, "/users/not-a-uuid/approve", ""},
		{http.MethodPost, "/users/1%27%20OR%201=1/reject", ""},
		{http.MethodPut, "/users/abc/role", `{"role":"ADMIN"}`},
		{http.MethodDelete, "/users/abc", ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, tc.method+" "+tc.path)
		assert.Contains(t, w.Body.String(), "invalid uuid", tc.path)
	}
}
