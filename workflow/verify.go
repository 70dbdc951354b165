package workflow

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	SignatureHeader = "Upstash-Signature"
	MessageIDHeader = "Upstash-Message-Id"
	TriggerIDHeader = "X-Trigger-Id"

	issuer = "Upstash"
)

var (
	ErrMissingSignature = errors.New("workflow: missing signature")
	ErrBadSignature     = errors.New("workflow: invalid signature")
)

// Verifier checks the JWT the cron service signs every callback with.
// Either the current or the next signing key is accepted so keys can rotate.
type Verifier struct {
	keys   []string
	leeway time.Duration
}

func NewVerifier(current, next string) *Verifier {
	v := &Verifier{leeway: 30 * time.Second}
	for _, k := range []string{current, next} {
		if k != "" {
			v.keys = append(v.keys, k)
		}
	}
	return v
}

// Enabled is false when no key is configured.
func (v *Verifier) Enabled() bool { return len(v.keys) > 0 }

type signatureClaims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

// Verify checks signature for a request to url carrying body.
func (v *Verifier) Verify(signature, url string, body []byte) error {
	if signature == "" {
		return ErrMissingSignature
	}
	var lastErr error
	for _, key := range v.keys {
		if err := v.verifyWith(key, signature, url, body); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("no signing key configured")
	}
	return fmt.Errorf("%w: %v", ErrBadSignature, lastErr)
}

func (v *Verifier) verifyWith(key, signature, url string, body []byte) error {
	var claims signatureClaims
	_, err := jwt.ParseWithClaims(signature, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(key), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(url),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return err
	}
	if trimPad(claims.Body) != BodyHash(body) {
		return errors.New("body hash mismatch")
	}
	return nil
}

// BodyHash is base64url(sha256(body)) without padding.
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func trimPad(s string) string { return strings.TrimRight(s, "=") }

// TriggerID picks the id a run dedups on. Scheduled calls carry the service's
// message id (stable across its retries); manual runs get a fresh uuid.
func TriggerID(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return uuid.NewString()
}
