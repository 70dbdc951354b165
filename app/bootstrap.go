// app/bootstrap.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"Gin_postgres_redis_library/config"
	"Gin_postgres_redis_library/notify"
)

type AdminPromoter interface {
	PromoteAdmins(ctx context.Context, emails []string) (int64, error)
}

// BootstrapAdmins 把 ADMIN_EMAILS 中已注册的账号提升为管理员
func BootstrapAdmins(ctx context.Context, cfg config.Config, repo AdminPromoter, log *slog.Logger) {
	if len(cfg.AdminEmails) == 0 {
		return
	}
	n, err := repo.PromoteAdmins(ctx, cfg.AdminEmails)
	if err != nil {
		log.Error("bootstrap admins failed", "err", err)
		return
	}
	if n > 0 {
		log.Info("[BOOTSTRAP] promoted configured admins", "count", n)
	}
}

type Scheduler interface {
	Schedule(ctx context.Context, destination, cron string) (string, error)
}

// ScheduleTarget is the callback URL the cron service hits for mode.
func ScheduleTarget(cfg config.Config, mode notify.Mode) string {
	return fmt.Sprintf("%s/api/workflows/%s", strings.TrimRight(cfg.AppBaseURL, "/"), mode)
}

// CronFor returns the configured cron expression of mode.
func CronFor(cfg config.WorkflowConfig, mode notify.Mode) string {
	switch mode {
	case notify.ModeDueTomorrow:
		return cfg.CronDueTomorrow
	case notify.ModeDueToday:
		return cfg.CronDueToday
	case notify.ModeOverdue:
		return cfg.CronOverdue
	}
	return ""
}

// RegisterSchedules asks the cron service to call every mode endpoint on its
// configured schedule. Failures are logged; the server still starts.
func RegisterSchedules(ctx context.Context, cfg config.Config, s Scheduler, log *slog.Logger) map[notify.Mode]string {
	ids := make(map[notify.Mode]string, len(notify.Modes))
	for _, m := range notify.Modes {
		cron := CronFor(cfg.Workflow, m)
		if cron == "" {
			continue
		}
		id, err := s.Schedule(ctx, ScheduleTarget(cfg, m), cron)
		if err != nil {
			log.Error("register schedule failed", "mode", m, "err", err)
			continue
		}
		ids[m] = id
		log.Info("schedule registered", "mode", m, "cron", cron, "id", id)
	}
	return ids
}
