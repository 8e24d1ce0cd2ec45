package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"habitual/internal/core"
	"habitual/internal/storage/memory"
)

// 2024-03-15 is a Friday.
var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func boolPtr(b bool) *bool { return &b }

func datePtr(d core.Date) *core.Date { return &d }

type recordingPublisher struct {
	mu      sync.Mutex
	entries []core.HabitEntry
	err     error
}

func (p *recordingPublisher) PublishEntryToggled(_ context.Context, e core.HabitEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, e)
	return p.err
}

// flakyStore fails GetOrCreateEntry calls that carry an owner.
type flakyStore struct {
	*memory.Store
	failWithOwner  bool
	failAlways     bool
	ownerlessCalls int
}

func (s *flakyStore) GetOrCreateEntry(ctx context.Context, key core.EntryKey, def bool) (core.HabitEntry, bool, error) {
	if s.failAlways || (s.failWithOwner && key.UserID != 0) {
		return core.HabitEntry{}, false, errors.New("no such column: user_id")
	}
	if key.UserID == 0 {
		s.ownerlessCalls++
	}
	return s.Store.GetOrCreateEntry(ctx, key, def)
}

type fixture struct {
	store *memory.Store
	user  core.User
	habit core.Habit
}

func newFixture(t *testing.T, habits ...string) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	user, err := store.CreateUser(ctx, "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	f := fixture{store: store, user: user}
	for i, title := range habits {
		h, err := store.CreateHabit(ctx, user.ID, title)
		if err != nil {
			t.Fatalf("CreateHabit() error = %v", err)
		}
		if i == 0 {
			f.habit = h
		}
	}
	return f
}

func TestMonthlyProgress_NoEntries(t *testing.T) {
	f := newFixture(t, "Read", "Run")
	svc := NewHabitService(f.store, WithClock(fixedClock))

	got, err := svc.MonthlyProgress(context.Background(), f.user.ID, 2024, 3)
	if err != nil {
		t.Fatalf("MonthlyProgress() error = %v", err)
	}
	if len(got.Days) != 31 || len(got.Counts) != 31 || len(got.Percentages) != 31 || len(got.Labels) != 31 {
		t.Fatalf("unexpected lengths: %+v", got)
	}
	for i := range got.Days {
		if got.Counts[i] != 0 || got.Percentages[i] != 0 {
			t.Errorf("day %d = %d/%v, want zeros", got.Days[i], got.Counts[i], got.Percentages[i])
		}
	}
	if got.Labels[0] != "2024-03-01" || got.Labels[30] != "2024-03-31" {
		t.Errorf("labels = %s..%s", got.Labels[0], got.Labels[30])
	}
}

func TestProgress_ZeroHabitsNeverDivides(t *testing.T) {
	f := newFixture(t)
	svc := NewHabitService(f.store, WithClock(fixedClock))
	ctx := context.Background()

	monthly, err := svc.MonthlyProgress(ctx, f.user.ID, 2024, 2)
	if err != nil {
		t.Fatalf("MonthlyProgress() error = %v", err)
	}
	if len(monthly.Days) != 29 {
		t.Errorf("February 2024 has %d days, want 29", len(monthly.Days))
	}
	for _, p := range monthly.Percentages {
		if p != 0 {
			t.Fatalf("percentage = %v, want 0", p)
		}
	}

	yearly, err := svc.YearlyProgress(ctx, f.user.ID, 2024)
	if err != nil {
		t.Fatalf("YearlyProgress() error = %v", err)
	}
	if len(yearly.Months) != 12 || yearly.Months[0] != "2024-01" || yearly.Months[11] != "2024-12" {
		t.Errorf("months = %v", yearly.Months)
	}
	for _, p := range yearly.Percentages {
		if p != 0 {
			t.Fatalf("percentage = %v, want 0", p)
		}
	}
}

func TestProgress_Counts(t *testing.T) {
	f := newFixture(t, "Read", "Run")
	ctx := context.Background()
	habits, _ := f.store.ListHabits(ctx, f.user.ID)
	for _, h := range habits {
		e, _, _ := f.store.GetOrCreateEntry(ctx, core.EntryKey{HabitID: h.ID, UserID: f.user.ID, Date: core.NewDate(2024, 3, 1)}, true)
		f.store.SaveEntry(ctx, e)
	}
	f.store.GetOrCreateEntry(ctx, core.EntryKey{HabitID: habits[0].ID, UserID: f.user.ID, Date: core.NewDate(2024, 3, 2)}, true)
	f.store.GetOrCreateEntry(ctx, core.EntryKey{HabitID: habits[1].ID, UserID: f.user.ID, Date: core.NewDate(2024, 3, 2)}, false)

	svc := NewHabitService(f.store, WithClock(fixedClock))
	monthly, err := svc.MonthlyProgress(ctx, f.user.ID, 2024, 3)
	if err != nil {
		t.Fatalf("MonthlyProgress() error = %v", err)
	}
	if monthly.Counts[0] != 2 || monthly.Percentages[0] != 100 {
		t.Errorf("day 1 = %d/%v, want 2/100", monthly.Counts[0], monthly.Percentages[0])
	}
	if monthly.Counts[1] != 1 || monthly.Percentages[1] != 50 {
		t.Errorf("day 2 = %d/%v, want 1/50", monthly.Counts[1], monthly.Percentages[1])
	}

	yearly, err := svc.YearlyProgress(ctx, f.user.ID, 2024)
	if err != nil {
		t.Fatalf("YearlyProgress() error = %v", err)
	}
	// 3 completions out of 2 habits * 31 days.
	if yearly.Counts[2] != 3 || yearly.Percentages[2] != 4.8 {
		t.Errorf("march = %d/%v, want 3/4.8", yearly.Counts[2], yearly.Percentages[2])
	}
}

func TestProgress_InvalidMonth(t *testing.T) {
	f := newFixture(t, "Read")
	svc := NewHabitService(f.store, WithClock(fixedClock))
	if _, err := svc.MonthlyProgress(context.Background(), f.user.ID, 2024, 13); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("MonthlyProgress(month 13) error = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.HabitsForMonth(context.Background(), f.user.ID, 2024, 0); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("HabitsForMonth(month 0) error = %v, want ErrInvalidInput", err)
	}
}

func TestHabitsForMonth_BackfillsToday(t *testing.T) {
	f := newFixture(t, "Read")
	svc := NewHabitService(f.store, WithClock(fixedClock))
	ctx := context.Background()

	got, err := svc.HabitsForMonth(ctx, f.user.ID, 2024, 3)
	if err != nil {
		t.Fatalf("HabitsForMonth() error = %v", err)
	}
	if got.NDays != 31 || len(got.Habits) != 1 || len(got.Habits[0].Days) != 31 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.Habits[0].Days[14] != (core.HabitDay{Day: 15, Completed: false}) {
		t.Errorf("today = %+v", got.Habits[0].Days[14])
	}

	entries, _ := f.store.ListEntriesForMonth(ctx, f.habit.ID, 2024, 3)
	if len(entries) != 1 || entries[0].Date.Day() != 15 || entries[0].Completed || entries[0].UserID != f.user.ID {
		t.Errorf("backfilled entries = %+v", entries)
	}

	// Past months are read without side effects.
	if _, err := svc.HabitsForMonth(ctx, f.user.ID, 2024, 2); err != nil {
		t.Fatalf("HabitsForMonth(feb) error = %v", err)
	}
	if entries, _ := f.store.ListEntriesForMonth(ctx, f.habit.ID, 2024, 2); len(entries) != 0 {
		t.Errorf("february entries = %+v, want none", entries)
	}
}

func TestHabitsForMonth_BackfillDisabled(t *testing.T) {
	f := newFixture(t, "Read")
	svc := NewHabitService(f.store, WithClock(fixedClock), WithBackfillToday(false))
	ctx := context.Background()

	got, err := svc.HabitsForMonth(ctx, f.user.ID, 2024, 3)
	if err != nil {
		t.Fatalf("HabitsForMonth() error = %v", err)
	}
	if got.Habits[0].Days[14].Completed {
		t.Error("today should report not completed")
	}
	if entries, _ := f.store.ListEntriesForMonth(ctx, f.habit.ID, 2024, 3); len(entries) != 0 {
		t.Errorf("entries = %+v, want none", entries)
	}
}

func TestHabitsForMonth_NoHabits(t *testing.T) {
	f := newFixture(t)
	svc := NewHabitService(f.store, WithClock(fixedClock))
	got, err := svc.HabitsForMonth(context.Background(), f.user.ID, 2024, 4)
	if err != nil {
		t.Fatalf("HabitsForMonth() error = %v", err)
	}
	if got.Habits == nil || len(got.Habits) != 0 || got.NDays != 30 {
		t.Errorf("payload = %+v", got)
	}
}

func TestCreateHabit(t *testing.T) {
	f := newFixture(t)
	svc := NewHabitService(f.store, WithClock(fixedClock))
	ctx := context.Background()

	h, err := svc.CreateHabit(ctx, f.user.ID, "  Stretch  ")
	if err != nil || h.Title != "Stretch" || h.UserID != f.user.ID {
		t.Fatalf("CreateHabit() = %+v, %v", h, err)
	}
	if _, err := svc.CreateHabit(ctx, f.user.ID, "   "); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("CreateHabit(blank) error = %v, want ErrInvalidInput", err)
	}
	habits, _ := svc.ListHabits(ctx, f.user.ID)
	if len(habits) != 1 {
		t.Errorf("ListHabits() = %d habits, want 1", len(habits))
	}
}

func TestJournal_RoundTrip(t *testing.T) {
	f := newFixture(t)
	svc := NewHabitService(f.store, WithClock(fixedClock))
	ctx := context.Background()
	day := core.NewDate(2024, 3, 15)

	empty, err := svc.GetJournal(ctx, f.user.ID, &day)
	if err != nil || empty != (core.JournalPayload{Date: "2024-03-15", Text: ""}) {
		t.Fatalf("GetJournal() = %+v, %v", empty, err)
	}

	if _, err := svc.UpsertJournal(ctx, f.user.ID, &day, "hello"); err != nil {
		t.Fatalf("UpsertJournal() error = %v", err)
	}
	got, err := svc.GetJournal(ctx, f.user.ID, &day)
	if err != nil || got != (core.JournalPayload{Date: "2024-03-15", Text: "hello"}) {
		t.Errorf("GetJournal() = %+v, %v", got, err)
	}

	// No date means today.
	today, _ := svc.GetJournal(ctx, f.user.ID, nil)
	if today.Text != "hello" || today.Date != "2024-03-15" {
		t.Errorf("GetJournal(nil) = %+v", today)
	}
	other, _ := svc.GetJournal(ctx, f.user.ID+1, &day)
	if other.Text != "" {
		t.Errorf("journal leaked across users: %+v", other)
	}
}
