package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"habitual/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ Store = (*SQLiteRepository)(nil)

// DSN returns the connection string used for both the pool and migrations.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single writer avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewSQLiteRepositoryFromDB(db), nil
}

// NewSQLiteRepositoryFromDB wraps an already migrated database.
func NewSQLiteRepositoryFromDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateUser implements UserStore
func (r *SQLiteRepository) CreateUser(ctx context.Context, email, passwordHash string) (core.User, error) {
	u, err := r.queries.CreateUser(ctx, CreateUserParams{
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    formatTimestamp(time.Now()),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, fmt.Errorf("create user %s: %w", email, core.ErrConflict)
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User saved to SQLite", "id", u.ID)
	return toCoreUser(u), nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := r.queries.GetUserByEmail(ctx, email)
	if err != nil {
		return core.User{}, notFound(err, "get user by email")
	}
	return toCoreUser(u), nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	u, err := r.queries.GetUser(ctx, id)
	if err != nil {
		return core.User{}, notFound(err, fmt.Sprintf("get user %d", id))
	}
	return toCoreUser(u), nil
}

func (r *SQLiteRepository) FirstUser(ctx context.Context) (core.User, error) {
	u, err := r.queries.GetFirstUser(ctx)
	if err != nil {
		return core.User{}, notFound(err, "get first user")
	}
	return toCoreUser(u), nil
}

// CreateHabit implements HabitStore
func (r *SQLiteRepository) CreateHabit(ctx context.Context, userID int64, title string) (core.Habit, error) {
	h, err := r.queries.CreateHabit(ctx, CreateHabitParams{
		UserID:    userID,
		Title:     title,
		CreatedAt: formatTimestamp(time.Now()),
	})
	if err != nil {
		return core.Habit{}, fmt.Errorf("create habit: %w", err)
	}

	slog.InfoContext(ctx, "Habit saved to SQLite", "id", h.ID, "user_id", h.UserID)
	return toCoreHabit(h), nil
}

func (r *SQLiteRepository) GetHabit(ctx context.Context, id int64) (core.Habit, error) {
	h, err := r.queries.GetHabit(ctx, id)
	if err != nil {
		return core.Habit{}, notFound(err, fmt.Sprintf("get habit %d", id))
	}
	return toCoreHabit(h), nil
}

func (r *SQLiteRepository) GetHabitForUser(ctx context.Context, userID, habitID int64) (core.Habit, error) {
	h, err := r.queries.GetHabitForUser(ctx, GetHabitForUserParams{ID: habitID, UserID: userID})
	if err != nil {
		return core.Habit{}, notFound(err, fmt.Sprintf("get habit %d", habitID))
	}
	return toCoreHabit(h), nil
}

func (r *SQLiteRepository) ListHabits(ctx context.Context, userID int64) ([]core.Habit, error) {
	rows, err := r.queries.ListHabitsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}

	habits := make([]core.Habit, len(rows))
	for i, h := range rows {
		habits[i] = toCoreHabit(h)
	}
	return habits, nil
}

func (r *SQLiteRepository) CountHabits(ctx context.Context, userID int64) (int, error) {
	n, err := r.queries.CountHabitsByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count habits: %w", err)
	}
	return int(n), nil
}

// CountCompletedOn implements EntryStore
func (r *SQLiteRepository) CountCompletedOn(ctx context.Context, userID int64, date core.Date) (int, error) {
	n, err := r.queries.CountCompletedOn(ctx, CountCompletedOnParams{UserID: userID, Date: date.String()})
	if err != nil {
		return 0, fmt.Errorf("count completed entries on %s: %w", date, err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) CountCompletedBetween(ctx context.Context, userID int64, from, to core.Date) (int, error) {
	n, err := r.queries.CountCompletedBetween(ctx, CountCompletedBetweenParams{
		UserID: userID,
		From:   from.String(),
		To:     to.String(),
	})
	if err != nil {
		return 0, fmt.Errorf("count completed entries %s..%s: %w", from, to, err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) ListEntriesForMonth(ctx context.Context, habitID int64, year, month int) ([]core.HabitEntry, error) {
	first, last := core.MonthBounds(year, month)
	rows, err := r.queries.ListEntriesBetween(ctx, ListEntriesBetweenParams{
		HabitID: habitID,
		From:    first.String(),
		To:      last.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list entries for %s: %w", core.MonthLabel(year, month), err)
	}

	entries := make([]core.HabitEntry, 0, len(rows))
	for _, e := range rows {
		entry, err := toCoreEntry(e)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetOrCreateEntry inserts and reads back the entry in one transaction, so a
// failed call leaves no row behind.
func (r *SQLiteRepository) GetOrCreateEntry(ctx context.Context, key core.EntryKey, defaultCompleted bool) (core.HabitEntry, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.HabitEntry{}, false, fmt.Errorf("begin entry transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	affected, err := q.InsertEntryIfMissing(ctx, InsertEntryIfMissingParams{
		HabitID:   key.HabitID,
		UserID:    nullableID(key.UserID),
		Date:      key.Date.String(),
		Completed: defaultCompleted,
	})
	if err != nil {
		return core.HabitEntry{}, false, fmt.Errorf("insert entry: %w", err)
	}

	row, err := q.GetEntry(ctx, GetEntryParams{HabitID: key.HabitID, Date: key.Date.String()})
	if err != nil {
		return core.HabitEntry{}, false, fmt.Errorf("read entry: %w", err)
	}

	entry, err := toCoreEntry(row)
	if err != nil {
		return core.HabitEntry{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return core.HabitEntry{}, false, fmt.Errorf("commit entry: %w", err)
	}

	created := affected > 0
	if created {
		slog.DebugContext(ctx, "Entry created", "habit_id", key.HabitID, "date", key.Date.String(), "with_owner", key.UserID != 0)
	}
	return entry, created, nil
}

func (r *SQLiteRepository) SaveEntry(ctx context.Context, entry core.HabitEntry) error {
	affected, err := r.queries.UpdateEntry(ctx, UpdateEntryParams{
		Completed: entry.Completed,
		UserID:    nullableID(entry.UserID),
		ID:        entry.ID,
	})
	if err != nil {
		return fmt.Errorf("save entry %d: %w", entry.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("save entry %d: %w", entry.ID, core.ErrNotFound)
	}
	return nil
}

// GetJournal implements JournalStore
func (r *SQLiteRepository) GetJournal(ctx context.Context, userID int64, date core.Date) (core.JournalEntry, error) {
	j, err := r.queries.GetJournalEntry(ctx, GetJournalEntryParams{UserID: userID, Date: date.String()})
	if err != nil {
		return core.JournalEntry{}, notFound(err, "get journal entry")
	}
	return toCoreJournal(j)
}

func (r *SQLiteRepository) UpsertJournal(ctx context.Context, userID int64, date core.Date, text string) (core.JournalEntry, error) {
	j, err := r.queries.UpsertJournalEntry(ctx, UpsertJournalEntryParams{UserID: userID, Date: date.String(), Text: text})
	if err != nil {
		return core.JournalEntry{}, fmt.Errorf("upsert journal entry: %w", err)
	}
	return toCoreJournal(j)
}

func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toCoreUser(u User) core.User {
	return core.User{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    parseTimestamp(u.CreatedAt),
	}
}

func toCoreHabit(h Habit) core.Habit {
	return core.Habit{
		ID:        h.ID,
		UserID:    h.UserID,
		Title:     h.Title,
		CreatedAt: parseTimestamp(h.CreatedAt),
	}
}

func toCoreEntry(e HabitEntry) (core.HabitEntry, error) {
	date, err := core.ParseISODate(e.Date)
	if err != nil {
		return core.HabitEntry{}, fmt.Errorf("entry %d: %w", e.ID, err)
	}
	return core.HabitEntry{
		ID:        e.ID,
		HabitID:   e.HabitID,
		UserID:    e.UserID.Int64,
		Date:      date,
		Completed: e.Completed,
	}, nil
}

func toCoreJournal(j JournalEntry) (core.JournalEntry, error) {
	date, err := core.ParseISODate(j.Date)
	if err != nil {
		return core.JournalEntry{}, fmt.Errorf("journal entry %d: %w", j.ID, err)
	}
	return core.JournalEntry{
		ID:     j.ID,
		UserID: j.UserID,
		Date:   date,
		Text:   j.Text,
	}, nil
}
