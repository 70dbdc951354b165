package routes

import (
	"net/http"
	"time"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	uc := controllers.GetUserController(s)
	bookCtl := controllers.NewBookController(s)
	borrowCtl := controllers.NewBorrowController(s)
	adminCtl := controllers.NewAdminController(s)
	wfCtl := controllers.NewWorkflowController(a.Scanner, a.Processor, a.Workflows, a.Config, a.Log)

	// 复用的中间件
	authMW := app.AuthRequired(s.AppSess, s.Repo)
	adminMW := app.AdminOnly(a.Config.AdminEmails)
	approvedMW := app.ApprovedOnly()
	seenMW := app.TouchLastSeen(s.Repo, a.RDB, 5*time.Minute)
	authLimit := app.RateLimit(a.RDB, a.Log, "auth", 10, time.Minute)
	signedMW := app.TriggerSigned(a.Verifier, a.Config.AppBaseURL, a.Config.Workflow.AllowUnsigned, a.Log)

	r.GET("/healthz", func(c *app.Ctx) { c.JSON(http.StatusOK, app.H{"ok": true}) })
	r.Static("/uploads", a.Config.UploadDir)

	// ------------------------------
	// 账号：注册 / 密码登录
	// ------------------------------
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authLimit, s.Register)
		auth.POST("/login", authLimit, s.Login)
		auth.POST("/logout", s.Logout)
		auth.GET("/whoami", authMW, seenMW, s.WhoAmI)
	}

	// ------------------------------
	// WebAuthn（公开+受保护）
	// ------------------------------
	wa := r.Group("/webauthn")
	{
		wa.POST("/login/begin", authLimit, s.BeginLogin)
		wa.POST("/login/finish", s.FinishLogin)
	}
	// 已登录用户添加新凭据（绑定手机等）
	creds := r.Group("/api/credentials", authMW, seenMW)
	{
		creds.POST("/add/begin", s.BeginAddCredential)
		creds.POST("/add/finish", s.FinishAddCredential)
	}

	// ------------------------------
	// 图书与借还
	// ------------------------------
	books := r.Group("/api/books", authMW, seenMW)
	{
		books.GET("", bookCtl.ListBooks) // ?q=&genre=&page=&size=
		books.GET("/:id", bookCtl.GetBook)
		books.POST("/:id/borrow", approvedMW, borrowCtl.Borrow)
	}
	borrows := r.Group("/api/borrows", authMW, seenMW)
	{
		borrows.GET("/me", borrowCtl.MyBorrows) // ?status=BORROWED|RETURNED
		borrows.POST("/:id/return", borrowCtl.Return)
	}
	r.POST("/api/uploads", authMW, s.Upload)

	// ------------------------------
	// 管理后台（仅管理员）
	// ------------------------------
	admin := r.Group("/api/admin", authMW, adminMW)
	{
		admin.GET("/stats", adminCtl.Stats)

		admin.GET("/users", uc.ListUsers) // ?q=&status=&page=&size=
		admin.GET("/users/:id", uc.GetUser)
		admin.POST("/users/:id/approve", uc.Approve)
		admin.POST("/users/:id/reject", uc.Reject)
		admin.PUT("/users/:id/role", uc.SetRole)
		admin.DELETE("/users/:id", uc.DeleteUser)

		admin.POST("/books", bookCtl.CreateBook)
		admin.PATCH("/books/:id", bookCtl.UpdateBook)
		admin.DELETE("/books/:id", bookCtl.DeleteBook)

		admin.GET("/borrows", adminCtl.ListBorrows)
		admin.GET("/borrows/export", adminCtl.ExportBorrows)
		admin.POST("/borrows/:id/return", borrowCtl.Return)
		admin.GET("/emails", adminCtl.ListEmailLogs)

		admin.GET("/schedules", wfCtl.ListSchedules)
		admin.POST("/schedules", wfCtl.CreateSchedule)
		admin.DELETE("/schedules/:id", wfCtl.DeleteSchedule)
	}

	// ------------------------------
	// 定时服务回调（签名校验）
	// ------------------------------
	wf := r.Group("/api/workflows", signedMW)
	{
		wf.POST("/batch", wfCtl.RunBatch)
		wf.POST("/:mode", wfCtl.RunMode)
	}
}
