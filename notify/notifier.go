package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"Gin_postgres_redis_library/mail"
	"Gin_postgres_redis_library/models"
)

// Notifier sends the one-off emails tied to user actions. Each carries a
// trigger id derived from the entity so a retried request never mails twice.
type Notifier struct {
	cfg  ProcessorConfig
	logs DedupStore
	send Sender
	log  *slog.Logger
}

func NewNotifier(cfg ProcessorConfig, logs DedupStore, send Sender, log *slog.Logger) *Notifier {
	return &Notifier{cfg: cfg, logs: logs, send: send, log: log}
}

func WelcomeTrigger(userID string) string  { return "welcome:" + userID }
func ApprovedTrigger(userID string) string { return "approved:" + userID }
func BorrowTrigger(recordID string) string { return "borrow:" + recordID }
func ReturnTrigger(recordID string) string { return "return:" + recordID }

func (n *Notifier) Welcome(ctx context.Context, u *models.User) error {
	return n.once(ctx, Notification{
		To:   u.Email,
		Type: models.EmailWelcome,
		Data: n.base(u.FullName),
		Meta: models.EmailMeta{TriggerID: WelcomeTrigger(u.ID)},
	})
}

func (n *Notifier) AccountApproved(ctx context.Context, u *models.User) error {
	return n.once(ctx, Notification{
		To:   u.Email,
		Type: models.EmailAccountApproved,
		Data: n.base(u.FullName),
		Meta: models.EmailMeta{TriggerID: ApprovedTrigger(u.ID)},
	})
}

// BorrowConfirmation expects r.User and r.Book to be loaded.
func (n *Notifier) BorrowConfirmation(ctx context.Context, r *models.BorrowRecord) error {
	return n.once(ctx, n.loanMail(r, models.EmailBorrowConfirmation, BorrowTrigger(r.ID)))
}

func (n *Notifier) ReturnConfirmation(ctx context.Context, r *models.BorrowRecord) error {
	return n.once(ctx, n.loanMail(r, models.EmailReturnConfirmation, ReturnTrigger(r.ID)))
}

func (n *Notifier) loanMail(r *models.BorrowRecord, typ models.EmailType, trigger string) Notification {
	c := FromRecord(r)
	d := n.base(c.FullName)
	d.BookTitle = c.BookTitle
	d.BookAuthor = c.BookAuthor
	d.BorrowDate = FormatDate(r.BorrowedAt)
	d.DueDate = FormatDate(r.DueDate)
	d.LoanDays = loanDays(r.BorrowedAt, r.DueDate)
	if r.ReturnDate != nil {
		d.ReturnDate = FormatDate(*r.ReturnDate)
		d.LoanDays = loanDays(r.BorrowedAt, *r.ReturnDate)
	}
	return Notification{
		To:   c.Email,
		Type: typ,
		Data: d,
		Meta: models.EmailMeta{TriggerID: trigger, RecordID: r.ID},
	}
}

func (n *Notifier) base(fullName string) mail.Data {
	return mail.Data{AppName: n.cfg.AppName, BaseURL: n.cfg.BaseURL, FullName: fullName}
}

func (n *Notifier) once(ctx context.Context, msg Notification) error {
	seen, err := n.logs.HasTriggerLog(ctx, msg.To, msg.Meta.TriggerID, msg.Meta.RecordID)
	if err != nil {
		return err
	}
	if seen {
		n.log.Debug("one-off email already sent", "to", msg.To, "trigger", msg.Meta.TriggerID)
		return nil
	}
	return n.send.Send(ctx, msg)
}

// Go runs fn detached from the request so a slow mail provider never holds
// up the response.
func (n *Notifier) Go(ctx context.Context, what string, fn func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			n.log.Error("async email failed", "what", what, "err", err)
		}
	}()
}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
