package app

import (
	"context"
	"net/http"
	"strings"

	"Gin_postgres_redis_library/models"
	"Gin_postgres_redis_library/session"

	"github.com/gin-gonic/gin"
)

const AppSessionCookie = "app_session"

const (
	ctxUserID = "userID"
	ctxUser   = "user"
)

type SessionReader interface {
	Get(ctx context.Context, id string) (*session.AppSession, error)
	Delete(ctx context.Context, id string) error
}

type UserFinder interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

func AuthRequired(appSess SessionReader, users UserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		ck, err := c.Request.Cookie(AppSessionCookie)
		if err != nil || ck.Value == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		as, err := appSess.Get(c.Request.Context(), ck.Value)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid session"})
			return
		}

		// 确认用户仍存在（只查一次），后续中间件直接复用
		u, err := users.FindUserByID(c.Request.Context(), as.UserID)
		if err != nil {
			_ = appSess.Delete(c.Request.Context(), ck.Value)
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		// 被拒绝的账号：会话作废
		if u.Status == models.UserRejected {
			_ = appSess.Delete(c.Request.Context(), ck.Value)
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "account rejected"})
			return
		}
		c.Set(ctxUserID, u.ID)
		c.Set(ctxUser, u)
		c.Next()
	}
}

// AdminOnly must run after AuthRequired. Addresses in adminEmails count as
// admins even before BootstrapAdmins has promoted them.
func AdminOnly(adminEmails []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		if u.IsAdmin() || isListed(u.Email, adminEmails) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden"})
	}
}

// ApprovedOnly blocks members whose account is still pending review.
func ApprovedOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		if u.Status != models.UserApproved {
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "account not approved", "status": u.Status})
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

func UserID(c *gin.Context) string { return c.GetString(ctxUserID) }

func isListed(email string, list []string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range list {
		if email == e {
			return true
		}
	}
	return false
}
