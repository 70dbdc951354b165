package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LOAN_DAYS", "")
	t.Setenv("FINE_PER_DAY", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MAIL_DRIVER", "")

	cfg := Load()
	require.Equal(t, 7, cfg.LoanDays)
	require.InDelta(t, 0.5, cfg.FinePerDay, 1e-9)
	require.Equal(t, "log", cfg.Mail.Driver)
	require.Contains(t, cfg.DatabaseURL, "dbname=library")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOAN_DAYS", "14")
	t.Setenv("FINE_PER_DAY", "1.25")
	t.Setenv("SESSION_TTL_SECONDS", "120")
	t.Setenv("ADMIN_EMAILS", " Admin@Example.com, ,ops@example.com ")
	t.Setenv("APP_BASE_URL", "https://lib.example.com/")
	t.Setenv("WORKFLOW_AUTO_SCHEDULE", "true")

	cfg := Load()
	require.Equal(t, 14, cfg.LoanDays)
	require.InDelta(t, 1.25, cfg.FinePerDay, 1e-9)
	require.Equal(t, 2*time.Minute, cfg.SessionTTL)
	require.Equal(t, []string{"admin@example.com", "ops@example.com"}, cfg.AdminEmails)
	require.Equal(t, "https://lib.example.com", cfg.AppBaseURL)
	require.True(t, cfg.Workflow.AutoSchedule)
}

func TestBadNumbersFallBack(t *testing.T) {
	t.Setenv("LOAN_DAYS", "seven")
	t.Setenv("FINE_PER_DAY", "cheap")
	cfg := Load()
	require.Equal(t, 7, cfg.LoanDays)
	require.InDelta(t, 0.5, cfg.FinePerDay, 1e-9)
}
