package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"habitual/internal/core"
	"habitual/internal/storage"
)

// EventPublisher receives toggled entries after they are persisted.
type EventPublisher interface {
	PublishEntryToggled(ctx context.Context, entry core.HabitEntry) error
}

// HabitService owns habit, progress, toggle and journal operations for
// an authenticated user.
type HabitService struct {
	store         storage.Store
	publisher     EventPublisher
	now           func() time.Time
	backfillToday bool
	publishWait   time.Duration
}

// defaultPublishWait bounds how long a toggle request waits on the broker.
const defaultPublishWait = 2 * time.Second

type Option func(*HabitService)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(s *HabitService) { s.now = now }
}

// WithPublisher sets the toggle event publisher. Nil disables publishing.
func WithPublisher(p EventPublisher) Option {
	return func(s *HabitService) { s.publisher = p }
}

// WithBackfillToday controls whether viewing the current month
// materializes today's entry.
func WithBackfillToday(enabled bool) Option {
	return func(s *HabitService) { s.backfillToday = enabled }
}

// WithPublishWait caps the time spent publishing one toggle event.
func WithPublishWait(d time.Duration) Option {
	return func(s *HabitService) { s.publishWait = d }
}

func NewHabitService(store storage.Store, opts ...Option) *HabitService {
	s := &HabitService{
		store:         store,
		now:           time.Now,
		backfillToday: true,
		publishWait:   defaultPublishWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current calendar date in the clock's location.
func (s *HabitService) Today() core.Date {
	return core.DateOf(s.now())
}

// CreateHabit adds a habit for userID.
func (s *HabitService) CreateHabit(ctx context.Context, userID int64, title string) (core.Habit, error) {
	title, err := core.NormalizeTitle(title)
	if err != nil {
		return core.Habit{}, core.InvalidInput(err.Error())
	}

	habit, err := s.store.CreateHabit(ctx, userID, title)
	if err != nil {
		return core.Habit{}, core.Internal("could not create habit", err)
	}

	slog.InfoContext(ctx, "Habit created", "habit_id", habit.ID, "user_id", userID)
	return habit, nil
}

func (s *HabitService) ListHabits(ctx context.Context, userID int64) ([]core.Habit, error) {
	habits, err := s.store.ListHabits(ctx, userID)
	if err != nil {
		return nil, core.Internal("could not list habits", err)
	}
	return habits, nil
}

func (s *HabitService) publish(ctx context.Context, entry core.HabitEntry) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "Event publisher not available, skipping entry toggled event")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.publishWait)
	defer cancel()

	if err := s.publisher.PublishEntryToggled(ctx, entry); err != nil {
		// The entry is already saved; the mirror is best effort.
		slog.ErrorContext(ctx, "Failed to publish entry toggled event",
			"entry_id", entry.ID, "habit_id", entry.HabitID, "error", err)
	}
}

func validateMonth(year, month int) error {
	if month < 1 || month > 12 {
		return core.InvalidInput(fmt.Sprintf("invalid month %d", month))
	}
	if year < 1 || year > 9999 {
		return core.InvalidInput(fmt.Sprintf("invalid year %d", year))
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
