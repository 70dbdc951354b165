package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"Gin_postgres_redis_library/config"
	"Gin_postgres_redis_library/models"
	"Gin_postgres_redis_library/notify"
	"Gin_postgres_redis_library/session"
	"Gin_postgres_redis_library/workflow"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func init() { gin.SetMode(gin.TestMode) }

type fakeSessions struct {
	m       map[string]string
	deleted []string
}

func (f *fakeSessions) Get(_ context.Context, id string) (*session.AppSession, error) {
	uid, ok := f.m[id]
	if !ok {
		return nil, errors.New("redis: nil")
	}
	return &session.AppSession{UserID: uid}, nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeUsers map[string]*models.User

func (f fakeUsers) FindUserByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

func authEngine(sess *fakeSessions, users fakeUsers, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	chain := append([]gin.HandlerFunc{AuthRequired(sess, users)}, extra...)
	chain = append(chain, func(c *gin.Context) {
		c.JSON(http.StatusOK, H{"uid": UserID(c)})
	})
	r.GET("/x", chain...)
	return r
}

func get(r http.Handler, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: AppSessionCookie, Value: cookie})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	sess := &fakeSessions{m: map[string]string{"s1": "u1", "s2": "gone"}}
	users := fakeUsers{"u1": {ID: "u1", Email: "a@example.com"}}
	r := authEngine(sess, users)

	assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "nope").Code)

	w := get(r, "s1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"uid":"u1"`)

	// a session whose user was deleted is dropped
	assert.Equal(t, http.StatusUnauthorized, get(r, "s2").Code)
	assert.Equal(t, []string{"s2"}, sess.deleted)
}

func TestAdminOnly(t *testing.T) {
	sess := &fakeSessions{m: map[string]string{"admin": "u1", "member": "u2", "listed": "u3"}}
	users := fakeUsers{
		"u1": {ID: "u1", Email: "root@example.com", Role: models.RoleAdmin},
		"u2": {ID: "u2", Email: "m@example.com", Role: models.RoleUser},
		"u3": {ID: "u3", Email: "Ops@Example.com", Role: models.RoleUser},
	}
	r := authEngine(sess, users, AdminOnly([]string{"ops@example.com"}))

	assert.Equal(t, http.StatusOK, get(r, "admin").Code)
	assert.Equal(t, http.StatusForbidden, get(r, "member").Code)
	assert.Equal(t, http.StatusOK, get(r, "listed").Code)
}

func TestApprovedOnly(t *testing.T) {
	sess := &fakeSessions{m: map[string]string{"ok": "u1", "pending": "u2"}}
	users := fakeUsers{
		"u1": {ID: "u1", Status: models.UserApproved},
		"u2": {ID: "u2", Status: models.UserPending},
	}
	r := authEngine(sess, users, ApprovedOnly())

	assert.Equal(t, http.StatusOK, get(r, "ok").Code)
	w := get(r, "pending")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "PENDING")
}

type fakeVerifier struct {
	enabled bool
	gotURL  string
	gotBody string
}

func (f *fakeVerifier) Enabled() bool { return f.enabled }

func (f *fakeVerifier) Verify(sig, url string, body []byte) error {
	f.gotURL, f.gotBody = url, string(body)
	if sig == "" {
		return workflow.ErrMissingSignature
	}
	if sig != "good" {
		return workflow.ErrBadSignature
	}
	return nil
}

func triggerEngine(v SignatureVerifier, allowUnsigned bool) *gin.Engine {
	r := gin.New()
	r.POST("/api/workflows/:mode", TriggerSigned(v, "https://lib.example.com/", allowUnsigned, quiet), func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(b))
	})
	return r
}

func postSigned(r http.Handler, sig, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/workflows/overdue", strings.NewReader(body))
	if sig != "" {
		req.Header.Set(workflow.SignatureHeader, sig)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTriggerSigned(t *testing.T) {
	v := &fakeVerifier{enabled: true}
	r := triggerEngine(v, false)

	w := postSigned(r, "good", `{"a":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	// the handler still sees the body
	assert.Equal(t, `{"a":1}`, w.Body.String())
	assert.Equal(t, "https://lib.example.com/api/workflows/overdue", v.gotURL)
	assert.Equal(t, `{"a":1}`, v.gotBody)

	assert.Equal(t, http.StatusUnauthorized, postSigned(r, "bad", "{}").Code)
	assert.Equal(t, http.StatusUnauthorized, postSigned(r, "", "{}").Code)
}

func TestTriggerSignedWithoutKey(t *testing.T) {
	v := &fakeVerifier{}
	assert.Equal(t, http.StatusServiceUnavailable, postSigned(triggerEngine(v, false), "", "{}").Code)
	assert.Equal(t, http.StatusOK, postSigned(triggerEngine(v, true), "", "{}").Code)
}

type fakePromoter struct {
	got []string
	n   int64
	err error
}

func (f *fakePromoter) PromoteAdmins(_ context.Context, emails []string) (int64, error) {
	f.got = emails
	return f.n, f.err
}

func TestBootstrapAdmins(t *testing.T) {
	p := &fakePromoter{n: 1}
	BootstrapAdmins(context.Background(), config.Config{AdminEmails: []string{"a@example.com"}}, p, quiet)
	assert.Equal(t, []string{"a@example.com"}, p.got)

	p = &fakePromoter{}
	BootstrapAdmins(context.Background(), config.Config{}, p, quiet)
	assert.Nil(t, p.got)
}

type fakeScheduler struct {
	calls map[string]string
	fail  string
}

func (f *fakeScheduler) Schedule(_ context.Context, dest, cron string) (string, error) {
	if dest == f.fail {
		return "", errors.New("boom")
	}
	f.calls[dest] = cron
	return "scd_" + cron, nil
}

func TestRegisterSchedules(t *testing.T) {
	cfg := config.Config{
		AppBaseURL: "https://lib.example.com",
		Workflow: config.WorkflowConfig{
			CronDueTomorrow: "0 9 * * *",
			CronDueToday:    "0 8 * * *",
			CronOverdue:     "0 10 * * *",
		},
	}
	s := &fakeScheduler{calls: map[string]string{}, fail: "https://lib.example.com/api/workflows/due-today"}

	ids := RegisterSchedules(context.Background(), cfg, s, quiet)
	assert.Len(t, ids, 2)
	assert.Equal(t, "0 10 * * *", s.calls["https://lib.example.com/api/workflows/overdue"])
	assert.Equal(t, "0 9 * * *", s.calls["https://lib.example.com/api/workflows/due-tomorrow"])
	_, ok := ids[notify.ModeDueToday]
	assert.False(t, ok)
}

func TestNotBlankValidator(t *testing.T) {
	registerValidators()
	type req struct {
		Name string `json:"name" binding:"required,notblank"`
	}
	r := gin.New()
	r.POST("/v", func(c *gin.Context) {
		var in req
		if err := c.ShouldBindJSON(&in); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})
	do := func(body string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v", strings.NewReader(body)))
		return w.Code
	}
	assert.Equal(t, http.StatusOK, do(`{"name":"Dune"}`))
	assert.Equal(t, http.StatusBadRequest, do(`{"name":"   "}`))
}

func TestAuthRequiredDropsRejected(t *testing.T) {
	sess := &fakeSessions{m: map[string]string{"s1": "u1"}}
	users := fakeUsers{"u1": {ID: "u1", Status: models.UserRejected}}
	r := authEngine(sess, users)

	w := get(r, "s1")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "account rejected")
	assert.Equal(t, []string{"s1"}, sess.deleted)
}
