package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/config"
	"Gin_postgres_redis_library/notify"
	"Gin_postgres_redis_library/workflow"

	"github.com/gin-gonic/gin"
)

type BatchScanner interface {
	Scan(ctx context.Context, mode notify.Mode, today time.Time) ([]notify.Candidate, error)
}

type BatchProcessor interface {
	Process(ctx context.Context, mode notify.Mode, triggerID string, cands []notify.Candidate) notify.Tally
}

type ScheduleAPI interface {
	Schedule(ctx context.Context, destination, cron string) (string, error)
	ListSchedules(ctx context.Context) ([]workflow.Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error
}

// WorkflowController serves the callbacks of the cron-trigger service and
// the admin screens that manage its schedules.
type WorkflowController struct {
	scanner   BatchScanner
	proc      BatchProcessor
	schedules ScheduleAPI
	cfg       config.Config
	log       *slog.Logger
	now       func() time.Time
}

func NewWorkflowController(scanner BatchScanner, proc BatchProcessor, schedules ScheduleAPI, cfg config.Config, log *slog.Logger) *WorkflowController {
	return &WorkflowController{scanner: scanner, proc: proc, schedules: schedules, cfg: cfg, log: log, now: time.Now}
}

type batchResult struct {
	Success   bool        `json:"success"`
	Mode      notify.Mode `json:"mode"`
	TriggerID string      `json:"triggerId"`
	notify.Tally
}

func (wc *WorkflowController) internalError(c *gin.Context, err error) {
	wc.log.Error("workflow run failed", "path", c.FullPath(), "err", err)
	c.JSON(http.StatusInternalServerError, app.H{"success": false, "error": "internal error"})
}

// recoverBatch turns a panic inside a run into the 500 success:false reply.
func (wc *WorkflowController) recoverBatch(c *gin.Context) {
	if r := recover(); r != nil {
		wc.internalError(c, fmt.Errorf("panic: %v", r))
	}
}

type runReq struct {
	// Date overrides "today" for manual catch-up runs (YYYY-MM-DD).
	Date      string `json:"date"`
	TriggerID string `json:"triggerId"`
}

// POST /api/workflows/:mode
// 扫描 + 发送；定时服务的消息 ID 作为去重用的 trigger id
func (wc *WorkflowController) RunMode(c *gin.Context) {
	defer wc.recoverBatch(c)

	mode, err := notify.ParseMode(c.Param("mode"))
	if err != nil {
		c.JSON(http.StatusNotFound, app.H{"success": false, "error": err.Error()})
		return
	}
	var in runReq
	// 定时服务调用时 body 可以为空
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, app.H{"success": false, "error": err.Error()})
		return
	}
	today := wc.now()
	if in.Date != "" {
		if today, err = parseDay(in.Date); err != nil {
			c.JSON(http.StatusBadRequest, app.H{"success": false, "error": "date must be YYYY-MM-DD"})
			return
		}
	}
	trigger := workflow.TriggerID(in.TriggerID, c.GetHeader(workflow.TriggerIDHeader), c.GetHeader(workflow.MessageIDHeader))

	cands, err := wc.scanner.Scan(c.Request.Context(), mode, today)
	if err != nil {
		wc.internalError(c, err)
		return
	}
	tally := wc.proc.Process(c.Request.Context(), mode, trigger, cands)
	c.JSON(http.StatusOK, batchResult{Success: true, Mode: mode, TriggerID: trigger, Tally: tally})
}

type batchRecord struct {
	RecordID    string `json:"recordId" binding:"required,notblank"`
	Email       string `json:"email" binding:"required,email"`
	FullName    string `json:"fullName"`
	BookTitle   string `json:"bookTitle" binding:"required,notblank"`
	BookAuthor  string `json:"bookAuthor"`
	BorrowDate  string `json:"borrowDate"`
	DueDate     string `json:"dueDate" binding:"required"`
	DaysOverdue int    `json:"daysOverdue" binding:"gte=0"`
}

type batchReq struct {
	TriggerID string        `json:"triggerId" binding:"required,notblank"`
	Mode      string        `json:"mode" binding:"required,oneof=due-tomorrow due-today overdue"`
	Records   []batchRecord `json:"records" binding:"required,dive"`
}

var errBadDate = errors.New("date must be YYYY-MM-DD or RFC 3339")

// POST /api/workflows/batch
// 调用方自带记录列表，只做去重 + 发送
func (wc *WorkflowController) RunBatch(c *gin.Context) {
	defer wc.recoverBatch(c)

	var in batchReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"success": false, "error": err.Error()})
		return
	}
	mode, _ := notify.ParseMode(in.Mode)

	cands := make([]notify.Candidate, 0, len(in.Records))
	for i, r := range in.Records {
		cand, err := r.candidate()
		if err != nil {
			c.JSON(http.StatusBadRequest, app.H{"success": false, "error": fmt.Sprintf("records[%d]: %v", i, err)})
			return
		}
		cands = append(cands, cand)
	}

	trigger := strings.TrimSpace(in.TriggerID)
	tally := wc.proc.Process(c.Request.Context(), mode, trigger, cands)
	c.JSON(http.StatusOK, batchResult{Success: true, Mode: mode, TriggerID: trigger, Tally: tally})
}

func (r batchRecord) candidate() (notify.Candidate, error) {
	due, err := parseDay(r.DueDate)
	if err != nil {
		return notify.Candidate{}, fmt.Errorf("dueDate: %w", err)
	}
	var borrowed time.Time
	if r.BorrowDate != "" {
		if borrowed, err = parseDay(r.BorrowDate); err != nil {
			return notify.Candidate{}, fmt.Errorf("borrowDate: %w", err)
		}
	}
	return notify.Candidate{
		RecordID:    strings.TrimSpace(r.RecordID),
		Email:       strings.TrimSpace(r.Email),
		FullName:    r.FullName,
		BookTitle:   r.BookTitle,
		BookAuthor:  r.BookAuthor,
		BorrowedAt:  borrowed,
		DueDate:     due,
		DaysOverdue: r.DaysOverdue,
	}, nil
}

func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errBadDate
}

// ===== 定时任务管理（管理员） =====

// GET /api/admin/schedules
func (wc *WorkflowController) ListSchedules(c *gin.Context) {
	ls, err := wc.schedules.ListSchedules(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"schedules": ls})
}

// POST /api/admin/schedules  {"mode":"overdue","cron":"0 10 * * *"}
// cron 为空时使用配置里的默认值
func (wc *WorkflowController) CreateSchedule(c *gin.Context) {
	var in struct {
		Mode string `json:"mode" binding:"required,oneof=due-tomorrow due-today overdue"`
		Cron string `json:"cron"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	mode, _ := notify.ParseMode(in.Mode)
	cron := strings.TrimSpace(in.Cron)
	if cron == "" {
		cron = app.CronFor(wc.cfg.Workflow, mode)
	}
	dest := app.ScheduleTarget(wc.cfg, mode)
	id, err := wc.schedules.Schedule(c.Request.Context(), dest, cron)
	if err != nil {
		c.JSON(http.StatusBadGateway, app.H{"error": err.Error()})
		return
	}
	wc.log.Info("schedule created", "mode", mode, "cron", cron, "id", id, "by", app.UserID(c))
	c.JSON(http.StatusCreated, app.H{"scheduleId": id, "destination": dest, "cron": cron})
}

// DELETE /api/admin/schedules/:id
func (wc *WorkflowController) DeleteSchedule(c *gin.Context) {
	if err := wc.schedules.DeleteSchedule(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusBadGateway, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
