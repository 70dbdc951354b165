// controllers/srv.go
package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/config"
	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/models"
	"Gin_postgres_redis_library/notify"
	"Gin_postgres_redis_library/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

type Srv struct {
	WA        *webauthn.WebAuthn
	Repo      *db.Repo
	Sess      *session.Store
	AppSess   *session.AppSessionStore
	Notifier  *notify.Notifier
	WebOrigin string
	Cfg       config.Config
	Log       *slog.Logger
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		WA:        a.WA,
		Repo:      a.Repo,
		Sess:      a.Ceremonies(),
		AppSess:   a.AppSessions(),
		Notifier:  a.Notifier,
		WebOrigin: a.Config.WebOrigin,
		Cfg:       a.Config,
		Log:       a.Log,
	}
}

// --- helpers ---

const appSessionTTL = 24 * time.Hour

// 统一设置业务会话 Cookie
func (s *Srv) setAppCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	secure := strings.HasPrefix(s.WebOrigin, "https://")
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
		MaxAge:   int(maxAge / time.Second),
	})
}

func (s *Srv) clearAppCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // 删除
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   strings.HasPrefix(s.WebOrigin, "https://"),
	})
}

// 登录成功：创建会话 + 触发登录快照
func (s *Srv) issueSession(ctx context.Context, w http.ResponseWriter, u *models.User, ip, ua string) error {
	if err := s.Repo.TouchUserLogin(ctx, u.ID, ip, ua); err != nil {
		s.Log.Warn("touch login failed", "user", u.ID, "err", err)
	}
	id := uuid.NewString()
	if err := s.AppSess.Create(ctx, id, u, ip, ua); err != nil {
		return err
	}
	s.setAppCookie(w, id, appSessionTTL)
	return nil
}

// WebAuthn: DB user -> waUser
type waUser struct {
	user  models.User
	creds []webauthn.Credential
}

func (u *waUser) WebAuthnID() []byte                         { id, _ := uuid.Parse(u.user.ID); return id[:] }
func (u *waUser) WebAuthnName() string                       { return u.user.Email }
func (u *waUser) WebAuthnDisplayName() string                { return u.user.FullName }
func (u *waUser) WebAuthnIcon() string                       { return "" }
func (u *waUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func toWaCred(c models.Credential) webauthn.Credential {
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.AAGUID,
			SignCount:    c.SignCount,
			CloneWarning: c.CloneWarning,
		},
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
	}
}

func (s *Srv) waUserOf(ctx context.Context, u *models.User) *waUser {
	cs, _ := s.Repo.LoadUserCredentials(ctx, u.ID)
	ws := make([]webauthn.Credential, 0, len(cs))
	for _, c := range cs {
		ws = append(ws, toWaCred(c))
	}
	return &waUser{user: *u, creds: ws}
}

func (s *Srv) loadWAUserByID(ctx context.Context, id string) (*waUser, error) {
	u, err := s.Repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.waUserOf(ctx, u), nil
}

func (s *Srv) loadWAUserByEmail(ctx context.Context, email string) (*waUser, error) {
	u, err := s.Repo.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.waUserOf(ctx, u), nil
}

// repoStatus maps repository sentinels onto HTTP codes.
func repoStatus(err error) (int, string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, db.ErrDuplicate):
		return http.StatusConflict, "already exists"
	case errors.Is(err, db.ErrAlreadyBorrowed):
		return http.StatusConflict, "you already have this book"
	case errors.Is(err, db.ErrNoCopies):
		return http.StatusConflict, "no copies available"
	case errors.Is(err, db.ErrNotOwner):
		return http.StatusForbidden, "not your borrow record"
	case errors.Is(err, db.ErrBookInUse):
		return http.StatusConflict, "copies are still on loan"
	case errors.Is(err, db.ErrHasHistory):
		return http.StatusConflict, "user has borrow history; reject the account instead"
	}
	return http.StatusInternalServerError, err.Error()
}

func fail(c *gin.Context, err error) {
	code, msg := repoStatus(err)
	c.JSON(code, app.H{"error": msg})
}
