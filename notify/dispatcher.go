package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/mail"
	"Gin_postgres_redis_library/models"
)

// Notification is one email about to go out.
type Notification struct {
	To   string
	Type models.EmailType
	Data mail.Data
	Meta models.EmailMeta
}

type TemplateRenderer interface {
	Render(typ models.EmailType, d mail.Data) (string, error)
}

type LogWriter interface {
	InsertEmailLog(ctx context.Context, l *models.EmailLog) error
}

// ErrUnlogged means the email went out but no log row backs it, so the dedup
// lookup will not see it on a re-run.
var ErrUnlogged = errors.New("notify: email sent but not logged")

// Dispatcher renders, sends and logs exactly one email per call.
type Dispatcher struct {
	mailer   mail.Mailer
	renderer TemplateRenderer
	logs     LogWriter
	log      *slog.Logger
}

func NewDispatcher(m mail.Mailer, r TemplateRenderer, logs LogWriter, log *slog.Logger) *Dispatcher {
	return &Dispatcher{mailer: m, renderer: r, logs: logs, log: log}
}

// Send returns the delivery (or render) error after the FAILED row is written.
// A log conflict on (recipient, trigger, record) means a concurrent run logged
// first; it is reported and otherwise ignored. Any other log failure after a
// successful delivery comes back wrapped in ErrUnlogged.
func (d *Dispatcher) Send(ctx context.Context, n Notification) error {
	subject := mail.Subject(n.Type, n.Data)

	sendErr := d.deliver(ctx, n, subject)

	entry := &models.EmailLog{
		Recipient: n.To,
		Type:      n.Type,
		Status:    models.EmailSent,
		Subject:   subject,
		Meta:      n.Meta,
	}
	if sendErr != nil {
		msg := sendErr.Error()
		entry.Status = models.EmailFailed
		entry.ErrorMessage = &msg
	}

	logErr := d.writeLog(ctx, entry)
	if logErr != nil {
		d.log.Error("write email log", "to", n.To, "type", n.Type, "trigger", n.Meta.TriggerID, "err", logErr)
	}

	if sendErr != nil {
		d.log.Error("email send failed", "to", n.To, "type", n.Type, "trigger", n.Meta.TriggerID, "err", sendErr)
		return sendErr
	}
	if logErr != nil {
		return fmt.Errorf("%w: %v", ErrUnlogged, logErr)
	}
	d.log.Info("email sent", "to", n.To, "type", n.Type, "trigger", n.Meta.TriggerID)
	return nil
}

// writeLog inserts entry, retrying once. A duplicate counts as written.
func (d *Dispatcher) writeLog(ctx context.Context, entry *models.EmailLog) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		row := *entry
		err = d.logs.InsertEmailLog(ctx, &row)
		if err == nil {
			return nil
		}
		if errors.Is(err, db.ErrDuplicate) {
			d.log.Warn("email log already present for trigger",
				"to", entry.Recipient, "type", entry.Type, "trigger", entry.Meta.TriggerID)
			return nil
		}
	}
	return err
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification, subject string) error {
	if n.To == "" {
		return errors.New("notify: empty recipient")
	}
	html, err := d.renderer.Render(n.Type, n.Data)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return d.mailer.Send(ctx, mail.Message{To: n.To, Subject: subject, HTML: html})
}
