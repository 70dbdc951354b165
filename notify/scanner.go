package notify

import (
	"context"
	"fmt"
	"time"

	"Gin_postgres_redis_library/models"
)

// Candidate is one open loan that may need an email. It is also the wire
// shape of a batch descriptor posted to the trigger endpoint.
type Candidate struct {
	RecordID    string    `json:"recordId"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	BookTitle   string    `json:"bookTitle"`
	BookAuthor  string    `json:"bookAuthor"`
	BorrowedAt  time.Time `json:"borrowDate"`
	DueDate     time.Time `json:"dueDate"`
	DaysOverdue int       `json:"daysOverdue"`
}

// BorrowSource is the read side of the borrow store the scanner needs.
type BorrowSource interface {
	ListActiveDueBetween(ctx context.Context, from, to time.Time) ([]models.BorrowRecord, error)
	ListActiveDueBefore(ctx context.Context, day time.Time) ([]models.BorrowRecord, error)
}

type Scanner struct {
	src BorrowSource
}

func NewScanner(src BorrowSource) *Scanner { return &Scanner{src: src} }

// Scan returns the candidates for mode on today. It only reads.
func (s *Scanner) Scan(ctx context.Context, mode Mode, today time.Time) ([]Candidate, error) {
	w, err := Window(mode, today)
	if err != nil {
		return nil, err
	}

	var recs []models.BorrowRecord
	if w.Open() {
		recs, err = s.src.ListActiveDueBefore(ctx, w.To)
	} else {
		recs, err = s.src.ListActiveDueBetween(ctx, w.From, w.To)
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", mode, err)
	}

	out := make([]Candidate, 0, len(recs))
	for i := range recs {
		r := &recs[i]
		// the store filters already; re-check so a loose query can never leak
		if r.Status != models.BorrowBorrowed || r.ReturnDate != nil || !w.Contains(r.DueDate) {
			continue
		}
		c := FromRecord(r)
		if mode == ModeOverdue {
			c.DaysOverdue = DaysOverdue(r.DueDate, today)
		}
		out = append(out, c)
	}
	return out, nil
}

// FromRecord flattens a preloaded borrow record.
func FromRecord(r *models.BorrowRecord) Candidate {
	c := Candidate{
		RecordID:   r.ID,
		BorrowedAt: r.BorrowedAt,
		DueDate:    r.DueDate,
	}
	if r.User != nil {
		c.Email = r.User.Email
		c.FullName = r.User.FullName
	}
	if r.Book != nil {
		c.BookTitle = r.Book.Title
		c.BookAuthor = r.Book.Author
	}
	return c
}
