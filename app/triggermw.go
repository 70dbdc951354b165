package app

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"Gin_postgres_redis_library/workflow"

	"github.com/gin-gonic/gin"
)

const maxTriggerBody = 1 << 20

type SignatureVerifier interface {
	Enabled() bool
	Verify(signature, url string, body []byte) error
}

// TriggerSigned accepts only callbacks signed by the cron service. The body
// is read once for the hash and put back for the handler.
func TriggerSigned(v SignatureVerifier, baseURL string, allowUnsigned bool, log *slog.Logger) gin.HandlerFunc {
	baseURL = strings.TrimRight(baseURL, "/")
	return func(c *gin.Context) {
		if !v.Enabled() {
			if allowUnsigned {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, H{"success": false, "error": "trigger signing key not configured"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTriggerBody))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, H{"success": false, "error": "cannot read body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		sig := c.GetHeader(workflow.SignatureHeader)
		url := baseURL + c.Request.URL.Path
		if err := v.Verify(sig, url, body); err != nil {
			if !errors.Is(err, workflow.ErrMissingSignature) {
				log.Warn("rejected trigger call", "path", c.Request.URL.Path, "err", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"success": false, "error": "invalid signature"})
			return
		}
		c.Next()
	}
}
