package notify

import (
	"errors"
	"fmt"
	"math"
	"time"

	"Gin_postgres_redis_library/models"
)

// Mode selects which open borrow records a scheduled run looks at.
type Mode string

const (
	ModeDueTomorrow Mode = "due-tomorrow"
	ModeDueToday    Mode = "due-today"
	ModeOverdue     Mode = "overdue"
)

var ErrUnknownMode = errors.New("notify: unknown mode")

var Modes = []Mode{ModeDueTomorrow, ModeDueToday, ModeOverdue}

func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// EmailType is the template a mode sends.
func (m Mode) EmailType() models.EmailType {
	switch m {
	case ModeDueTomorrow:
		return models.EmailDueReminder
	case ModeDueToday:
		return models.EmailDueToday
	case ModeOverdue:
		return models.EmailOverdueNotice
	}
	return ""
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateRange is an inclusive range of calendar dates. A zero From means
// "anything strictly before To".
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) Open() bool { return r.From.IsZero() }

func (r DateRange) Contains(due time.Time) bool {
	d := Day(due)
	if r.Open() {
		return d.Before(r.To)
	}
	return !d.Before(r.From) && !d.After(r.To)
}

// Window returns the due-date range a mode matches on the given day.
func Window(mode Mode, today time.Time) (DateRange, error) {
	t := Day(today)
	switch mode {
	case ModeDueTomorrow:
		tm := t.AddDate(0, 0, 1)
		return DateRange{From: tm, To: tm}, nil
	case ModeDueToday:
		return DateRange{From: t, To: t}, nil
	case ModeOverdue:
		return DateRange{To: t}, nil
	}
	return DateRange{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

// DaysOverdue is today minus due in whole calendar days, never negative.
func DaysOverdue(due, today time.Time) int {
	n := int(Day(today).Sub(Day(due)).Hours() / 24)
	if n < 0 {
		return 0
	}
	return n
}

// Penalty is days × rate rounded to cents.
func Penalty(days int, rate float64) float64 {
	if days <= 0 || rate <= 0 {
		return 0
	}
	return math.Round(float64(days)*rate*100) / 100
}

func FormatMoney(v float64) string { return fmt.Sprintf("$%.2f", v) }

// FormatDate is the date style used in every email.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("Mon, Jan 2, 2006")
}
