package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type registerReq struct {
	FullName     string `json:"fullName" binding:"required,notblank,max=255"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8,max=72"`
	UniversityID string `json:"universityId" binding:"required,notblank,max=64"`
	IDCardURL    string `json:"idCardUrl" binding:"omitempty,max=512"`
}

// POST /api/auth/register
func (s *Srv) Register(c *gin.Context) {
	var in registerReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": "hash password failed"})
		return
	}

	u := &models.User{
		ID:           uuid.NewString(),
		FullName:     strings.TrimSpace(in.FullName),
		Email:        in.Email,
		UniversityID: strings.TrimSpace(in.UniversityID),
		IDCardURL:    in.IDCardURL,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		Status:       models.UserPending,
	}
	// 配置里的管理员邮箱直接通过审核
	for _, e := range s.Cfg.AdminEmails {
		if strings.EqualFold(e, strings.TrimSpace(in.Email)) {
			u.Role, u.Status = models.RoleAdmin, models.UserApproved
		}
	}

	if err := s.Repo.CreateUser(c.Request.Context(), u); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			c.JSON(http.StatusConflict, app.H{"error": "email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}

	s.Notifier.Go(c.Request.Context(), "welcome", func(ctx context.Context) error {
		return s.Notifier.Welcome(ctx, u)
	})

	// 注册即登录
	if err := s.issueSession(c.Request.Context(), c.Writer, u, c.ClientIP(), c.Request.UserAgent()); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": "create app session failed"})
		return
	}
	c.JSON(http.StatusCreated, app.H{"ok": true, "user": u})
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// POST /api/auth/login
func (s *Srv) Login(c *gin.Context) {
	var in loginReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	u, err := s.Repo.FindUserByEmail(c.Request.Context(), in.Email)
	if err != nil || u.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		c.JSON(http.StatusUnauthorized, app.H{"error": "invalid email or password"})
		return
	}
	if u.Status == models.UserRejected {
		c.JSON(http.StatusForbidden, app.H{"error": "account rejected"})
		return
	}
	if err := s.issueSession(c.Request.Context(), c.Writer, u, c.ClientIP(), c.Request.UserAgent()); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": "create app session failed"})
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true, "user": u})
}

// POST /api/auth/logout
func (s *Srv) Logout(c *gin.Context) {
	if ck, err := c.Request.Cookie(app.AppSessionCookie); err == nil && ck.Value != "" {
		_ = s.AppSess.Delete(c.Request.Context(), ck.Value)
	}
	s.clearAppCookie(c.Writer)
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /api/auth/whoami
func (s *Srv) WhoAmI(c *gin.Context) {
	u, ok := app.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	creds, _ := s.Repo.LoadUserCredentials(c.Request.Context(), u.ID)
	c.JSON(http.StatusOK, app.H{
		"user":       u,
		"isAdmin":    u.IsAdmin(),
		"passkeys":   len(creds),
		"canBorrow":  u.Status == models.UserApproved,
		"loanDays":   s.Cfg.LoanDays,
		"finePerDay": s.Cfg.FinePerDay,
	})
}
