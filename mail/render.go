package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"Gin_postgres_redis_library/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Data is the view model every template receives.
type Data struct {
	AppName  string
	BaseURL  string
	FullName string

	BookTitle  string
	BookAuthor string
	BorrowDate string
	DueDate    string
	ReturnDate string
	LoanDays   int

	DaysOverdue int
	Penalty     string
}

var templateFiles = map[models.EmailType]string{
	models.EmailWelcome:            "templates/welcome.html",
	models.EmailAccountApproved:    "templates/account_approved.html",
	models.EmailBorrowConfirmation: "templates/borrow_confirmation.html",
	models.EmailDueReminder:        "templates/due_reminder.html",
	models.EmailDueToday:           "templates/due_today.html",
	models.EmailOverdueNotice:      "templates/overdue_notice.html",
	models.EmailReturnConfirmation: "templates/return_confirmation.html",
}

type Renderer struct {
	sets map[models.EmailType]*template.Template
}

// NewRenderer parses every template once at startup.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{sets: make(map[models.EmailType]*template.Template, len(templateFiles))}
	for typ, file := range templateFiles {
		t, err := template.ParseFS(templateFS, "templates/layout.html", file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		r.sets[typ] = t
	}
	return r, nil
}

func (r *Renderer) Render(typ models.EmailType, d Data) (string, error) {
	t, ok := r.sets[typ]
	if !ok {
		return "", fmt.Errorf("mail: no template for %s", typ)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", d); err != nil {
		return "", fmt.Errorf("render %s: %w", typ, err)
	}
	return buf.String(), nil
}

func Subject(typ models.EmailType, d Data) string {
	switch typ {
	case models.EmailWelcome:
		return fmt.Sprintf("Welcome to %s!", d.AppName)
	case models.EmailAccountApproved:
		return fmt.Sprintf("Your %s account has been approved", d.AppName)
	case models.EmailBorrowConfirmation:
		return fmt.Sprintf("You borrowed %q", d.BookTitle)
	case models.EmailDueReminder:
		return fmt.Sprintf("Reminder: %q is due tomorrow", d.BookTitle)
	case models.EmailDueToday:
		return fmt.Sprintf("%q is due today", d.BookTitle)
	case models.EmailOverdueNotice:
		return fmt.Sprintf("Overdue: %q (%d days)", d.BookTitle, d.DaysOverdue)
	case models.EmailReturnConfirmation:
		return fmt.Sprintf("Thanks for returning %q", d.BookTitle)
	}
	return d.AppName
}
