package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 从环境变量读取
type Config struct {
	Port        string
	DatabaseURL string
	RedisAddr   string
	RedisPwd    string
	WebOrigin   string
	RPID        string
	RPOrigins   []string
	SessionTTL  time.Duration
	AdminEmails []string

	AppName    string
	AppBaseURL string
	UploadDir  string
	LoanDays   int
	FinePerDay float64

	Mail     MailConfig
	Workflow WorkflowConfig
}

type MailConfig struct {
	Driver   string // smtp | api | log
	From     string
	FromName string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string

	APIURL string
	APIKey string
}

type WorkflowConfig struct {
	APIURL         string
	Token          string
	SigningKey     string
	NextSigningKey string
	AutoSchedule   bool
	AllowUnsigned  bool

	CronDueTomorrow string
	CronDueToday    string
	CronOverdue     string
}

// LoadEnv reads .env when present; a missing file is fine in containers.
func LoadEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("load .env failed", "err", err)
	}
}

func Load() Config {
	ttl := 10 * time.Minute
	if d, err := time.ParseDuration(get("SESSION_TTL_SECONDS", "600") + "s"); err == nil {
		ttl = d
	}

	return Config{
		Port:        get("PORT", "3001"),
		DatabaseURL: get("DATABASE_URL", dsnFromParts()),
		RedisAddr:   get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:    os.Getenv("REDIS_PASSWORD"),
		WebOrigin:   get("WEB_ORIGIN", "http://localhost:3000"),
		RPID:        get("RP_ID", "localhost"),
		RPOrigins:   splitCSV(get("RP_ORIGINS", "http://localhost:3000"), false),
		SessionTTL:  ttl,
		AdminEmails: splitCSV(os.Getenv("ADMIN_EMAILS"), true),

		AppName:    get("APP_NAME", "Library"),
		AppBaseURL: strings.TrimRight(get("APP_BASE_URL", "http://localhost:3001"), "/"),
		UploadDir:  get("UPLOAD_DIR", "./uploads"),
		LoanDays:   getInt("LOAN_DAYS", 7),
		FinePerDay: getFloat("FINE_PER_DAY", 0.5),

		Mail: MailConfig{
			Driver:       strings.ToLower(get("MAIL_DRIVER", "log")),
			From:         os.Getenv("MAIL_FROM"),
			FromName:     get("MAIL_FROM_NAME", get("APP_NAME", "Library")),
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     get("SMTP_PORT", "587"),
			SMTPUsername: os.Getenv("SMTP_USERNAME"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
			APIURL:       get("MAIL_API_URL", "https://api.resend.com/emails"),
			APIKey:       os.Getenv("MAIL_API_KEY"),
		},
		Workflow: WorkflowConfig{
			APIURL:          strings.TrimRight(get("WORKFLOW_API_URL", "https://qstash.upstash.io"), "/"),
			Token:           os.Getenv("WORKFLOW_TOKEN"),
			SigningKey:      os.Getenv("WORKFLOW_SIGNING_KEY"),
			NextSigningKey:  os.Getenv("WORKFLOW_NEXT_SIGNING_KEY"),
			AutoSchedule:    getBool("WORKFLOW_AUTO_SCHEDULE", false),
			AllowUnsigned:   getBool("WORKFLOW_ALLOW_UNSIGNED", false),
			CronDueTomorrow: get("WORKFLOW_CRON_DUE_TOMORROW", "0 9 * * *"),
			CronDueToday:    get("WORKFLOW_CRON_DUE_TODAY", "0 8 * * *"),
			CronOverdue:     get("WORKFLOW_CRON_OVERDUE", "0 10 * * *"),
		},
	}
}

func dsnFromParts() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		get("DB_HOST", "127.0.0.1"),
		get("DB_USER", "postgres"),
		get("DB_PASSWORD", "postgres"),
		get("DB_NAME", "library"),
		get("DB_PORT", "5432"),
	)
}

func get(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	if n, err := strconv.Atoi(get(k, "")); err == nil {
		return n
	}
	return def
}

func getFloat(k string, def float64) float64 {
	if f, err := strconv.ParseFloat(get(k, ""), 64); err == nil {
		return f
	}
	return def
}

func getBool(k string, def bool) bool {
	if b, err := strconv.ParseBool(get(k, "")); err == nil {
		return b
	}
	return def
}

func splitCSV(csv string, lower bool) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if t := strings.TrimSpace(s); t != "" {
			if lower {
				t = strings.ToLower(t)
			}
			out = append(out, t)
		}
	}
	return out
}
