package db

import (
	"context"
	"testing"
	"time"

	"Gin_postgres_redis_library/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestRepo migrates a private in-memory database. Queries that use
// Postgres-only functions (NOW, LEAST) are not exercised here.
func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// every new connection would get its own empty memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, Migrate(conn))
	return NewRepo(conn)
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	r    *Repo
	user *models.User
	book *models.Book
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := newTestRepo(t)
	ctx := context.Background()
	u := &models.User{ID: uuid.NewString(), FullName: "Ann Reader", Email: " Ann@Example.com", Status: models.UserApproved}
	require.NoError(t, r.CreateUser(ctx, u))
	b := &models.Book{ID: uuid.NewString(), Title: "Dune", Author: "Frank Herbert", Genre: "SF", TotalCopies: 5, AvailableCopies: 5}
	require.NoError(t, r.CreateBook(ctx, b))
	return &fixture{r: r, user: u, book: b}
}

// loan puts a fresh book on loan, so several open loans never hit the
// one-open-loan-per-book index.
func (f *fixture) loan(t *testing.T, due string, status models.BorrowStatus) *models.BorrowRecord {
	t.Helper()
	b := &models.Book{Title: "Copy " + due, Author: "A", Genre: "G", TotalCopies: 1}
	require.NoError(t, f.r.CreateBook(context.Background(), b))
	rec := &models.BorrowRecord{
		ID:         uuid.NewString(),
		UserID:     f.user.ID,
		BookID:     b.ID,
		BorrowedAt: day(due).AddDate(0, 0, -7),
		DueDate:    day(due),
		Status:     status,
	}
	if status == models.BorrowReturned {
		ret := day(due)
		rec.ReturnDate = &ret
	}
	require.NoError(t, f.r.DB.Create(rec).Error)
	return rec
}

func ids(recs []models.BorrowRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func TestListActiveDueWindows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	today := day("2026-03-10")

	yesterday := f.loan(t, "2026-03-09", models.BorrowBorrowed)
	dueToday := f.loan(t, "2026-03-10", models.BorrowBorrowed)
	tomorrow := f.loan(t, "2026-03-11", models.BorrowBorrowed)
	f.loan(t, "2026-03-01", models.BorrowReturned)

	got, err := f.r.ListActiveDueBetween(ctx, today, today)
	require.NoError(t, err)
	assert.Equal(t, []string{dueToday.ID}, ids(got))
	require.NotNil(t, got[0].User)
	assert.Equal(t, "ann@example.com", got[0].User.Email)
	require.NotNil(t, got[0].Book)
	assert.Equal(t, "Copy 2026-03-10", got[0].Book.Title)

	got, err = f.r.ListActiveDueBetween(ctx, today.AddDate(0, 0, 1), today.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{tomorrow.ID}, ids(got))

	got, err = f.r.ListActiveDueBetween(ctx, today, today.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{dueToday.ID, tomorrow.ID}, ids(got))

	// strictly before today: due today is not overdue, returned loans are gone
	got, err = f.r.ListActiveDueBefore(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, []string{yesterday.ID}, ids(got))
}

func TestListActiveDueIgnoresClock(t *testing.T) {
	f := newFixture(t)
	rec := f.loan(t, "2026-03-10", models.BorrowBorrowed)

	// the scan runs late in the day; only the calendar date counts
	late := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	got, err := f.r.ListActiveDueBetween(context.Background(), late, late)
	require.NoError(t, err)
	assert.Equal(t, []string{rec.ID}, ids(got))

	got, err = f.r.ListActiveDueBefore(context.Background(), late)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func emailLog(recipient, trigger, record string) *models.EmailLog {
	return &models.EmailLog{
		Recipient: recipient,
		Type:      models.EmailOverdueNotice,
		Status:    models.EmailSent,
		Subject:   "Overdue",
		Meta:      models.EmailMeta{TriggerID: trigger, RecordID: record},
	}
}

func TestInsertEmailLogDedup(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	first := emailLog("ann@example.com", "trig-1", "rec-a")
	require.NoError(t, r.InsertEmailLog(ctx, first))
	assert.NotEmpty(t, first.ID)

	// same recipient (any case), trigger and record
	err := r.InsertEmailLog(ctx, emailLog("ANN@example.com ", "trig-1", "rec-a"))
	require.ErrorIs(t, err, ErrDuplicate)

	// a second loan for the same recipient in the same trigger is its own row
	require.NoError(t, r.InsertEmailLog(ctx, emailLog("ann@example.com", "trig-1", "rec-b")))
	// so is the next trigger
	require.NoError(t, r.InsertEmailLog(ctx, emailLog("ann@example.com", "trig-2", "rec-a")))
	// rows outside any trigger never collide
	require.NoError(t, r.InsertEmailLog(ctx, emailLog("ann@example.com", "", "")))
	require.NoError(t, r.InsertEmailLog(ctx, emailLog("ann@example.com", "", "")))

	page, err := r.ListEmailLogs(ctx, EmailLogQuery{Recipient: "Ann@Example.com", TriggerID: "trig-1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
}

func TestHasTriggerLog(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, r.InsertEmailLog(ctx, emailLog(" Ann@Example.COM", "trig-1", "rec-a")))

	ok, err := r.HasTriggerLog(ctx, "ANN@example.com", "trig-1", "rec-a")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, c := range [][3]string{
		{"ann@example.com", "trig-1", "rec-b"},
		{"ann@example.com", "trig-2", "rec-a"},
		{"bob@example.com", "trig-1", "rec-a"},
	} {
		ok, err := r.HasTriggerLog(ctx, c[0], c[1], c[2])
		require.NoError(t, err)
		assert.False(t, ok, c)
	}
}

func TestBorrowBookGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := day("2026-03-10")

	rec, err := f.r.BorrowBook(ctx, f.user.ID, f.book.ID, now, now.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Equal(t, models.BorrowBorrowed, rec.Status)
	assert.Equal(t, 4, rec.Book.AvailableCopies)

	_, err = f.r.BorrowBook(ctx, f.user.ID, f.book.ID, now, now.AddDate(0, 0, 7))
	require.ErrorIs(t, err, ErrAlreadyBorrowed)

	_, err = f.r.BorrowBook(ctx, f.user.ID, uuid.NewString(), now, now)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.r.DB.Model(&models.Book{}).Where("id = ?", f.book.ID).Update("available_copies", 0).Error)
	other := &models.User{ID: uuid.NewString(), FullName: "Bob", Email: "bob@example.com"}
	require.NoError(t, f.r.CreateUser(ctx, other))
	_, err = f.r.BorrowBook(ctx, other.ID, f.book.ID, now, now)
	require.ErrorIs(t, err, ErrNoCopies)
}

func TestDeleteUserByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// open loan blocks deletion
	open := f.loan(t, "2026-03-10", models.BorrowBorrowed)
	require.ErrorIs(t, f.r.DeleteUserByID(ctx, f.user.ID), ErrBookInUse)

	// a returned loan still anchors the email log
	require.NoError(t, f.r.DB.Model(&models.BorrowRecord{}).Where("id = ?", open.ID).
		Updates(map[string]any{"status": models.BorrowReturned, "return_date": day("2026-03-10")}).Error)
	require.ErrorIs(t, f.r.DeleteUserByID(ctx, f.user.ID), ErrHasHistory)
	_, err := f.r.GetBorrow(ctx, open.ID)
	require.NoError(t, err)

	fresh := &models.User{ID: uuid.NewString(), FullName: "New", Email: "new@example.com"}
	require.NoError(t, f.r.CreateUser(ctx, fresh))
	require.NoError(t, f.r.AddCredential(ctx, &models.Credential{UserID: fresh.ID, CredentialID: []byte("cred-1")}))
	require.NoError(t, f.r.DeleteUserByID(ctx, fresh.ID))

	_, err = f.r.FindUserByID(ctx, fresh.ID)
	require.ErrorIs(t, err, ErrNotFound)
	creds, err := f.r.LoadUserCredentials(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Empty(t, creds)

	require.ErrorIs(t, f.r.DeleteUserByID(ctx, uuid.NewString()), ErrNotFound)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	err := f.r.CreateUser(context.Background(), &models.User{ID: uuid.NewString(), FullName: "Twin", Email: "ANN@example.com"})
	require.ErrorIs(t, err, ErrDuplicate)
}
