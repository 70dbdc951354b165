// controllers/webauthn_controller.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/models"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// Passkeys are an optional second way in; accounts are always created by
// password registration first.

// ===== 添加新凭据（已登录） =====

func (s *Srv) BeginAddCredential(c *gin.Context) {
	uid := app.UserID(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	wUser, err := s.loadWAUserByID(ctx, uid)
	if err != nil {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}

	exclude := make([]protocol.CredentialDescriptor, 0, len(wUser.creds))
	for _, cr := range wUser.creds {
		exclude = append(exclude, cr.Descriptor())
	}
	opts, sd, err := s.WA.BeginRegistration(
		wUser,
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			UserVerification: protocol.VerificationRequired,
		}),
		webauthn.WithExclusions(exclude),
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}

	if err := s.Sess.SaveReg(ctx, wUser.user.ID, sd); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"opts": opts})
}

func (s *Srv) FinishAddCredential(c *gin.Context) {
	uid := app.UserID(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	wUser, err := s.loadWAUserByID(ctx, uid)
	if err != nil {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}

	sd, err := s.Sess.LoadReg(ctx, wUser.user.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "session expired or invalid"})
		return
	}

	cred, err := s.WA.FinishRegistration(wUser, *sd, c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	if err := s.Repo.AddCredential(ctx, &models.Credential{
		UserID:          wUser.user.ID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		CloneWarning:    cred.Authenticator.CloneWarning,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
	}); err != nil {
		fail(c, err)
		return
	}
	s.Sess.DelReg(ctx, wUser.user.ID)
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// ===== 登录 =====

type loginBeginReq struct {
	Email        string `json:"email"`
	Discoverable bool   `json:"discoverable"`
}
type loginBeginResp struct {
	Options   *protocol.CredentialAssertion `json:"options"`
	SessionID string                        `json:"sessionId"`
}

func (s *Srv) BeginLogin(c *gin.Context) {
	var req loginBeginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "bad request"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	var (
		opts *protocol.CredentialAssertion
		sd   *webauthn.SessionData
		err  error
	)
	if req.Discoverable || req.Email == "" {
		opts, sd, err = s.WA.BeginDiscoverableLogin(webauthn.WithUserVerification(protocol.VerificationRequired))
	} else {
		wUser, err2 := s.loadWAUserByEmail(ctx, req.Email)
		if err2 != nil || len(wUser.creds) == 0 {
			c.JSON(http.StatusNotFound, app.H{"error": "no passkey for this account"})
			return
		}
		opts, sd, err = s.WA.BeginLogin(wUser, webauthn.WithUserVerification(protocol.VerificationRequired))
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}

	sid := uuid.NewString()
	if err := s.Sess.SaveAuth(ctx, sid, sd); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, loginBeginResp{Options: opts, SessionID: sid})
}

func (s *Srv) FinishLogin(c *gin.Context) {
	sid := c.Query("sessionId")
	if sid == "" {
		c.JSON(http.StatusBadRequest, app.H{"error": "missing sessionId"})
		return
	}
	ip, ua := c.ClientIP(), c.Request.UserAgent()

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	sd, err := s.Sess.LoadAuth(ctx, sid)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "session expired or invalid"})
		return
	}

	var (
		user *models.User
		cred *webauthn.Credential
	)
	if email := c.Query("email"); email != "" {
		wUser, err := s.loadWAUserByEmail(ctx, email)
		if err != nil {
			c.JSON(http.StatusNotFound, app.H{"error": "user not found"})
			return
		}
		cred, err = s.WA.FinishLogin(wUser, *sd, c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, app.H{"error": err.Error()})
			return
		}
		user = &wUser.user
	} else {
		handler := func(rawID, _ []byte) (webauthn.User, error) {
			u, _, err := s.Repo.FindUserByCredentialID(ctx, rawID)
			if err != nil {
				return nil, protocol.ErrBadRequest.WithDetails("credential not found")
			}
			return s.waUserOf(ctx, u), nil
		}
		wu, cr, err := s.WA.FinishPasskeyLogin(handler, *sd, c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, app.H{"error": err.Error()})
			return
		}
		user, cred = &wu.(*waUser).user, cr
	}
	_ = s.Repo.UpdateCredentialCounter(ctx, cred.ID, cred.Authenticator.SignCount, cred.Authenticator.CloneWarning)
	s.Sess.DelAuth(ctx, sid)

	if user.Status == models.UserRejected {
		c.JSON(http.StatusForbidden, app.H{"error": "account rejected"})
		return
	}
	if err := s.issueSession(ctx, c.Writer, user, ip, ua); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": "create app session failed"})
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true, "user": user})
}
