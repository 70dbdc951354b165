package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserController struct{ *Srv }

func GetUserController(s *Srv) *UserController { return &UserController{Srv: s} }

// GET /api/admin/users?q=alice&status=PENDING&page=1&size=20
func (uc *UserController) ListUsers(c *gin.Context) {
	q := c.Query("q")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	res, err := uc.Repo.ListUsers(c.Request.Context(), q, models.UserStatus(c.Query("status")), page, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{
		"total": res.Total,
		"users": res.Users,
	})
}

// userParam returns the :id path value, answering 400 when it is not a uuid.
func userParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil { // ✅ 校验 UUID 格式
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid uuid"})
		return "", false
	}
	return id, true
}

// GET /api/admin/users/:id
func (uc *UserController) GetUser(c *gin.Context) {
	id, ok := userParam(c)
	if !ok {
		return
	}
	user, err := uc.Repo.FindUserByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	borrows, _ := uc.Repo.ListUserBorrows(c.Request.Context(), id, "")
	sessions, err := uc.AppSess.ListForUser(c.Request.Context(), id)
	if err != nil {
		uc.Log.Warn("list sessions failed", "user", id, "err", err)
	}
	c.JSON(http.StatusOK, app.H{"user": user, "borrows": borrows, "sessions": sessions})
}

// POST /api/admin/users/:id/approve
func (uc *UserController) Approve(c *gin.Context) {
	uc.setStatus(c, models.UserApproved)
}

// POST /api/admin/users/:id/reject
func (uc *UserController) Reject(c *gin.Context) {
	uc.setStatus(c, models.UserRejected)
}

func (uc *UserController) setStatus(c *gin.Context, status models.UserStatus) {
	id, ok := userParam(c)
	if !ok {
		return
	}
	if id == app.UserID(c) {
		c.JSON(http.StatusBadRequest, app.H{"error": "cannot change your own status"})
		return
	}
	before, err := uc.Repo.FindUserByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	u, err := uc.Repo.SetUserStatus(c.Request.Context(), id, status)
	if err != nil {
		fail(c, err)
		return
	}
	if status == models.UserApproved && before.Status != models.UserApproved {
		uc.Notifier.Go(c.Request.Context(), "account approved", func(ctx context.Context) error {
			return uc.Notifier.AccountApproved(ctx, u)
		})
	}
	if status == models.UserRejected {
		_ = uc.AppSess.RevokeAllForUser(c.Request.Context(), id)
	} else {
		uc.syncSessions(c.Request.Context(), u)
	}
	c.JSON(http.StatusOK, app.H{"user": u})
}

// PUT /api/admin/users/:id/role  {"role":"ADMIN"}
func (uc *UserController) SetRole(c *gin.Context) {
	id, ok := userParam(c)
	if !ok {
		return
	}
	var in struct {
		Role models.Role `json:"role" binding:"required,oneof=USER ADMIN"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	if id == app.UserID(c) && in.Role != models.RoleAdmin {
		c.JSON(http.StatusBadRequest, app.H{"error": "cannot demote yourself"})
		return
	}
	if err := uc.Repo.SetUserRole(c.Request.Context(), id, in.Role); err != nil {
		fail(c, err)
		return
	}
	if u, err := uc.Repo.FindUserByID(c.Request.Context(), id); err == nil {
		uc.syncSessions(c.Request.Context(), u)
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// syncSessions pushes the member's current role and status into every
// session they hold, so signed-in browsers see the change without a new login.
func (uc *UserController) syncSessions(ctx context.Context, u *models.User) {
	if err := uc.AppSess.SetMemberState(ctx, u.ID, u.Role, u.Status); err != nil {
		uc.Log.Warn("sync sessions failed", "user", u.ID, "err", err)
	}
}

// DELETE /api/admin/users/:id
func (uc *UserController) DeleteUser(c *gin.Context) {
	id, ok := userParam(c)
	if !ok {
		return
	}

	// 不允许删除自己，避免锁死
	if id == app.UserID(c) {
		c.JSON(http.StatusBadRequest, app.H{"error": "cannot delete yourself"})
		return
	}

	target, err := uc.Repo.FindUserByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if target.IsAdmin() {
		c.JSON(http.StatusForbidden, app.H{"error": "cannot delete an admin"})
		return
	}

	if err := uc.Repo.DeleteUserByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, db.ErrBookInUse) {
			c.JSON(http.StatusConflict, app.H{"error": "user still has books on loan"})
			return
		}
		fail(c, err)
		return
	}
	// ✅ 关键：撤销该用户的所有登录会话
	_ = uc.AppSess.RevokeAllForUser(c.Request.Context(), id)
	c.JSON(http.StatusOK, app.H{"ok": true})
}
