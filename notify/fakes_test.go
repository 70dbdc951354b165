package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/mail"
	"Gin_postgres_redis_library/models"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// memLogs mimics the email log table including its (recipient, trigger, record) index.
type memLogs struct {
	mu      sync.Mutex
	rows    []models.EmailLog
	lookErr error
	// insertFails makes the next n inserts fail.
	insertFails int
}

func (m *memLogs) HasTriggerLog(_ context.Context, recipient, triggerID, recordID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookErr != nil {
		return false, m.lookErr
	}
	for _, r := range m.rows {
		if r.Recipient == strings.ToLower(recipient) && r.Meta.TriggerID == triggerID && r.Meta.RecordID == recordID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memLogs) InsertEmailLog(_ context.Context, l *models.EmailLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertFails > 0 {
		m.insertFails--
		return errors.New("pq: connection reset")
	}
	l.Recipient = strings.ToLower(l.Recipient)
	if l.Meta.TriggerID != "" {
		for _, r := range m.rows {
			if r.Recipient == l.Recipient && r.Meta.TriggerID == l.Meta.TriggerID && r.Meta.RecordID == l.Meta.RecordID {
				return db.ErrDuplicate
			}
		}
	}
	m.rows = append(m.rows, *l)
	return nil
}

func (m *memLogs) byStatus(s models.EmailStatus) []models.EmailLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EmailLog
	for _, r := range m.rows {
		if r.Status == s {
			out = append(out, r)
		}
	}
	return out
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []mail.Message
	failTo map[string]bool
}

func (f *fakeMailer) Send(_ context.Context, m mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[m.To] {
		return errors.New("smtp: 421 try later")
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeMailer) count(to string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.sent {
		if m.To == to {
			n++
		}
	}
	return n
}

type memClaims struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func (c *memClaims) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.held == nil {
		c.held = map[string]bool{}
	}
	if c.held[key] {
		return false, nil
	}
	c.held[key] = true
	return true, nil
}

// allRecords ignores the date arguments so the scanner's own filter is tested.
type allRecords struct {
	recs []models.BorrowRecord
	err  error
}

func (a *allRecords) ListActiveDueBetween(context.Context, time.Time, time.Time) ([]models.BorrowRecord, error) {
	return a.recs, a.err
}

func (a *allRecords) ListActiveDueBefore(context.Context, time.Time) ([]models.BorrowRecord, error) {
	return a.recs, a.err
}

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func record(id, email string, due time.Time) models.BorrowRecord {
	return models.BorrowRecord{
		ID:         id,
		Status:     models.BorrowBorrowed,
		BorrowedAt: due.AddDate(0, 0, -7),
		DueDate:    due,
		User:       &models.User{ID: "u-" + id, Email: email, FullName: "Reader " + id},
		Book:       &models.Book{ID: "b-" + id, Title: "Book " + id, Author: "Author"},
	}
}

type pipeline struct {
	logs   *memLogs
	mailer *fakeMailer
	claims *memClaims
	proc   *Processor
}

func newPipeline(failTo ...string) *pipeline {
	r, err := mail.NewRenderer()
	if err != nil {
		panic(err)
	}
	p := &pipeline{
		logs:   &memLogs{},
		mailer: &fakeMailer{failTo: map[string]bool{}},
		claims: &memClaims{},
	}
	for _, to := range failTo {
		p.mailer.failTo[to] = true
	}
	disp := NewDispatcher(p.mailer, r, p.logs, quiet)
	p.proc = NewProcessor(ProcessorConfig{AppName: "Library", BaseURL: "http://lib.test", FinePerDay: 0.5},
		p.logs, p.claims, disp, quiet)
	return p
}
