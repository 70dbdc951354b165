package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"Gin_postgres_redis_library/config"
)

// Message is one rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// New picks the delivery driver from config. Unknown or unconfigured drivers
// fall back to the log driver so development setups never block on mail.
func New(cfg config.MailConfig, log *slog.Logger) Mailer {
	switch cfg.Driver {
	case "smtp":
		if cfg.SMTPHost != "" && (cfg.SMTPUsername != "" || cfg.From != "") {
			return &SMTPMailer{conf: cfg}
		}
		log.Warn("smtp mail driver selected but SMTP_HOST/SMTP_USERNAME missing, using log driver")
	case "api":
		if cfg.APIKey != "" {
			return NewAPIMailer(cfg.APIURL, cfg.APIKey, cfg.From, cfg.FromName, nil)
		}
		log.Warn("api mail driver selected but MAIL_API_KEY missing, using log driver")
	}
	return &LogMailer{Log: log}
}

// SMTP

// smtpTimeout bounds one whole SMTP conversation when ctx has no deadline.
const smtpTimeout = 20 * time.Second

type SMTPMailer struct {
	conf config.MailConfig
}

func (s *SMTPMailer) Send(ctx context.Context, m Message) error {
	fromAddr := s.conf.From
	if fromAddr == "" {
		fromAddr = s.conf.SMTPUsername
	}
	msg := buildMIMEWithFromName(s.conf.FromName, fromAddr, m.To, m.Subject, m.HTML)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(smtpTimeout)
	}
	addr := net.JoinHostPort(s.conf.SMTPHost, s.conf.SMTPPort)
	conn, err := (&net.Dialer{Deadline: deadline}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	// 整个会话共用一个截止时间，服务器卡住时不会拖住整批发送
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	c, err := smtp.NewClient(conn, s.conf.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer c.Close()
	return s.converse(c, fromAddr, m.To, []byte(msg))
}

// converse runs the same exchange as smtp.SendMail on an open client.
func (s *SMTPMailer) converse(c *smtp.Client, from, to string, msg []byte) error {
	if err := c.Hello("localhost"); err != nil {
		return err
	}
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.conf.SMTPHost}); err != nil {
			return err
		}
	}
	if s.conf.SMTPUsername != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		auth := smtp.PlainAuth("", s.conf.SMTPUsername, s.conf.SMTPPassword, s.conf.SMTPHost)
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMIMEWithFromName(fromName, fromAddr, to, subject, html string) string {
	headers := []string{
		fmt.Sprintf("From: %s <%s>", mime.QEncoding.Encode("utf-8", fromName), fromAddr),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", mime.QEncoding.Encode("utf-8", subject)),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}
	return strings.Join(headers, "\r\n") + "\r\n\r\n" + html
}

// Transactional email HTTP API (bearer key, JSON body).

type APIMailer struct {
	url    string
	apiKey string
	from   string
	client *http.Client
}

func NewAPIMailer(url, apiKey, from, fromName string, client *http.Client) *APIMailer {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if fromName != "" && from != "" {
		from = fmt.Sprintf("%s <%s>", fromName, from)
	}
	return &APIMailer{url: url, apiKey: apiKey, from: from, client: client}
}

func (a *APIMailer) Send(ctx context.Context, m Message) error {
	b, err := json.Marshal(map[string]any{
		"from":    a.from,
		"to":      []string{m.To},
		"subject": m.Subject,
		"html":    m.HTML,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail api: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// Development: print instead of sending.

type LogMailer struct {
	Log *slog.Logger
}

func (l *LogMailer) Send(_ context.Context, m Message) error {
	if m.To == "" {
		return errors.New("mail: empty recipient")
	}
	l.Log.Info("[DEV] email", "to", m.To, "subject", m.Subject, "bytes", len(m.HTML))
	return nil
}
