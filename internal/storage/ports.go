package storage

import (
	"context"

	"habitual/internal/core"
)

// Store errors wrap core.ErrNotFound for missing rows and core.ErrConflict
// for unique violations.

type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	// FirstUser returns the user with the lowest id.
	FirstUser(ctx context.Context) (core.User, error)
}

type HabitStore interface {
	CreateHabit(ctx context.Context, userID int64, title string) (core.Habit, error)
	GetHabit(ctx context.Context, id int64) (core.Habit, error)
	// GetHabitForUser returns NotFound both for missing habits and for
	// habits owned by someone else.
	GetHabitForUser(ctx context.Context, userID, habitID int64) (core.Habit, error)
	ListHabits(ctx context.Context, userID int64) ([]core.Habit, error)
	CountHabits(ctx context.Context, userID int64) (int, error)
}

type EntryStore interface {
	CountCompletedOn(ctx context.Context, userID int64, date core.Date) (int, error)
	// CountCompletedBetween counts completed entries in [from, to].
	CountCompletedBetween(ctx context.Context, userID int64, from, to core.Date) (int, error)
	ListEntriesForMonth(ctx context.Context, habitID int64, year, month int) ([]core.HabitEntry, error)
	// GetOrCreateEntry returns the entry for (habit, date), inserting it with
	// defaultCompleted when missing. Concurrent callers get the same row. A
	// call that returns an error leaves no new row behind.
	GetOrCreateEntry(ctx context.Context, key core.EntryKey, defaultCompleted bool) (core.HabitEntry, bool, error)
	// SaveEntry persists Completed and UserID.
	SaveEntry(ctx context.Context, entry core.HabitEntry) error
}

type JournalStore interface {
	GetJournal(ctx context.Context, userID int64, date core.Date) (core.JournalEntry, error)
	UpsertJournal(ctx context.Context, userID int64, date core.Date, text string) (core.JournalEntry, error)
}

// Store is the full persistence surface used by services.
type Store interface {
	UserStore
	HabitStore
	EntryStore
	JournalStore
	Ping(ctx context.Context) error
	Close() error
}
