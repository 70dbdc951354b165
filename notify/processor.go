package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"Gin_postgres_redis_library/mail"
	"Gin_postgres_redis_library/models"
)

// Tally is the outcome of one batch. Sent+Failed+Skipped == Total.
// Unlogged counts the sent emails whose log row could not be written.
type Tally struct {
	Total    int `json:"total"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
	Unlogged int `json:"unlogged,omitempty"`
}

func (t Tally) add(o outcome) Tally {
	t.Total++
	switch o {
	case outcomeSent:
		t.Sent++
	case outcomeSentUnlogged:
		t.Sent++
		t.Unlogged++
	case outcomeFailed:
		t.Failed++
	case outcomeSkipped:
		t.Skipped++
	}
	return t
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeSentUnlogged
	outcomeFailed
	outcomeSkipped
)

type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// DedupStore answers whether a trigger already produced a log row for one
// recipient and borrow record. One-off emails pass an empty record id.
type DedupStore interface {
	HasTriggerLog(ctx context.Context, recipient, triggerID, recordID string) (bool, error)
}

// Claimer takes a short-lived exclusive claim on a key. It returns false when
// someone else already holds it.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type ProcessorConfig struct {
	AppName    string
	BaseURL    string
	FinePerDay float64
	ClaimTTL   time.Duration
}

type Processor struct {
	cfg    ProcessorConfig
	logs   DedupStore
	claims Claimer // optional
	send   Sender
	log    *slog.Logger
	now    func() time.Time
}

func NewProcessor(cfg ProcessorConfig, logs DedupStore, claims Claimer, send Sender, log *slog.Logger) *Processor {
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 10 * time.Minute
	}
	return &Processor{cfg: cfg, logs: logs, claims: claims, send: send, log: log, now: time.Now}
}

// Process runs the candidates one after another. Any per-record error is
// logged and tallied as failed; the batch always runs to the end.
func (p *Processor) Process(ctx context.Context, mode Mode, triggerID string, cands []Candidate) Tally {
	var t Tally
	today := Day(p.now())
	for _, c := range cands {
		t = t.add(p.one(ctx, mode, triggerID, today, c))
	}
	p.log.Info("notification batch done",
		"mode", mode, "trigger", triggerID,
		"total", t.Total, "sent", t.Sent, "failed", t.Failed, "skipped", t.Skipped, "unlogged", t.Unlogged)
	return t
}

func (p *Processor) one(ctx context.Context, mode Mode, triggerID string, today time.Time, c Candidate) outcome {
	seen, err := p.logs.HasTriggerLog(ctx, c.Email, triggerID, c.RecordID)
	if err != nil {
		p.log.Error("dedup lookup failed", "record", c.RecordID, "to", c.Email, "err", err)
		return outcomeFailed
	}
	if seen {
		p.log.Debug("already notified for trigger", "record", c.RecordID, "to", c.Email, "trigger", triggerID)
		return outcomeSkipped
	}

	if p.claims != nil {
		ok, err := p.claims.Claim(ctx, ClaimKey(triggerID, c.Email, c.RecordID), p.cfg.ClaimTTL)
		switch {
		case err != nil:
			// the unique index still guards the log
			p.log.Warn("send claim unavailable", "record", c.RecordID, "err", err)
		case !ok:
			return outcomeSkipped
		}
	}

	n := p.build(mode, triggerID, today, c)
	if err := p.send.Send(ctx, n); err != nil {
		if errors.Is(err, ErrUnlogged) {
			p.log.Error("notification sent without log row", "record", c.RecordID, "to", c.Email, "trigger", triggerID, "err", err)
			return outcomeSentUnlogged
		}
		p.log.Error("notification failed", "record", c.RecordID, "to", c.Email, "err", err)
		return outcomeFailed
	}
	return outcomeSent
}

func (p *Processor) build(mode Mode, triggerID string, today time.Time, c Candidate) Notification {
	days := c.DaysOverdue
	if mode == ModeOverdue && days == 0 {
		days = DaysOverdue(c.DueDate, today)
	}
	var penalty float64
	if mode == ModeOverdue {
		penalty = Penalty(days, p.cfg.FinePerDay)
	}

	return Notification{
		To:   c.Email,
		Type: mode.EmailType(),
		Data: mail.Data{
			AppName:     p.cfg.AppName,
			BaseURL:     p.cfg.BaseURL,
			FullName:    c.FullName,
			BookTitle:   c.BookTitle,
			BookAuthor:  c.BookAuthor,
			BorrowDate:  FormatDate(c.BorrowedAt),
			DueDate:     FormatDate(c.DueDate),
			LoanDays:    loanDays(c.BorrowedAt, c.DueDate),
			DaysOverdue: days,
			Penalty:     FormatMoney(penalty),
		},
		Meta: models.EmailMeta{
			TriggerID:   triggerID,
			RecordID:    c.RecordID,
			DaysOverdue: days,
			Penalty:     penalty,
		},
	}
}

// ClaimKey is the redis key guarding one (trigger, recipient, record) send.
func ClaimKey(triggerID, recipient, recordID string) string {
	return fmt.Sprintf("notify:claim:%s:%s:%s", triggerID, normEmail(recipient), recordID)
}

func loanDays(from, to time.Time) int {
	if from.IsZero() || to.IsZero() {
		return 0
	}
	return DaysOverdue(from, to)
}
