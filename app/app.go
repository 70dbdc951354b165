package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"Gin_postgres_redis_library/config"
	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/mail"
	"Gin_postgres_redis_library/notify"
	"Gin_postgres_redis_library/session"
	"Gin_postgres_redis_library/workflow"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client
	WA     *webauthn.WebAuthn
	Config config.Config
	Log    *slog.Logger
	Repo   *db.Repo

	Mailer    mail.Mailer
	Scanner   *notify.Scanner
	Processor *notify.Processor
	Notifier  *notify.Notifier
	Workflows *workflow.Client
	Verifier  *workflow.Verifier

	appSess *session.AppSessionStore
	waSess  *session.Store
	claims  *session.ClaimStore
}

func (a *App) AppSessions() *session.AppSessionStore { return a.appSess }
func (a *App) Ceremonies() *session.Store            { return a.waSess }

// NewLogger is the JSON logger every component shares.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func MustNew(cfg config.Config, log *slog.Logger) *App {
	// --- DB: Postgres ---
	dbConn, err := db.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		fatal(log, "postgres", err)
	}
	log.Info("database connected")
	repo := db.NewRepo(dbConn)

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		fatal(log, "redis", err)
	}

	// --- WebAuthn RP ---
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.AppName + " Passkeys",
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		fatal(log, "webauthn", err)
	}

	// --- Mail + notifications ---
	renderer, err := mail.NewRenderer()
	if err != nil {
		fatal(log, "mail templates", err)
	}
	mailer := mail.New(cfg.Mail, log)
	claims := session.NewClaimStore(rdb)
	pcfg := notify.ProcessorConfig{
		AppName:    cfg.AppName,
		BaseURL:    cfg.AppBaseURL,
		FinePerDay: cfg.FinePerDay,
	}
	disp := notify.NewDispatcher(mailer, renderer, repo, log)

	// --- Gin ---
	r := gin.Default()
	useCORS(r, cfg.WebOrigin)
	registerValidators()

	return &App{
		Router: r, DB: dbConn, RDB: rdb, WA: wa, Config: cfg, Log: log, Repo: repo,
		Mailer:    mailer,
		Scanner:   notify.NewScanner(repo),
		Processor: notify.NewProcessor(pcfg, repo, claims, disp, log),
		Notifier:  notify.NewNotifier(pcfg, repo, disp, log),
		Workflows: workflow.NewClient(cfg.Workflow.APIURL, cfg.Workflow.Token, nil),
		Verifier:  workflow.NewVerifier(cfg.Workflow.SigningKey, cfg.Workflow.NextSigningKey),

		// 业务会话：1 天 TTL
		appSess: session.NewAppSessionStore(rdb, 24*time.Hour),
		waSess:  session.NewStore(rdb, cfg.SessionTTL),
		claims:  claims,
	}
}

func (a *App) Close() {
	_ = a.RDB.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func fatal(log *slog.Logger, what string, err error) {
	log.Error("startup failed", "component", what, "err", err)
	os.Exit(1)
}
