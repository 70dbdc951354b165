package main

import (
	"context"
	"time"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/config"
	"Gin_postgres_redis_library/routes"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()
	log := app.NewLogger()

	application := app.MustNew(cfg, log)
	defer application.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	app.BootstrapAdmins(ctx, cfg, application.Repo, log)
	// 定时服务：启动时登记三个提醒任务
	if cfg.Workflow.AutoSchedule && cfg.Workflow.Token != "" {
		app.RegisterSchedules(ctx, cfg, application.Workflows, log)
	}
	cancel()

	r := application.Router
	routes.RegisterRoutes(r, application)

	log.Info("listening", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Error("server stopped", "err", err)
	}
}
