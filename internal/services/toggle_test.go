package services

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"habitual/internal/core"
	"habitual/internal/storage/memory"
)

func TestToggleEntry_CreatesTodayEntry(t *testing.T) {
	f := newFixture(t, "Read")
	pub := &recordingPublisher{}
	svc := NewHabitService(f.store, WithClock(fixedClock), WithPublisher(pub))
	ctx := context.Background()

	got, err := svc.ToggleEntry(ctx, ToggleRequest{UserID: f.user.ID, HabitID: f.habit.ID, Completed: boolPtr(true)})
	if err != nil {
		t.Fatalf("ToggleEntry() error = %v", err)
	}
	if got.HabitID != f.habit.ID || got.Date != "2024-03-15" || !got.Completed {
		t.Errorf("result = %+v", got)
	}
	if got.Habit.CompletedCount != 1 || got.Habit.Percentage != 3.2 {
		t.Errorf("habit payload = %d/%v, want 1/3.2", got.Habit.CompletedCount, got.Habit.Percentage)
	}
	if !got.Habit.Days[14].Completed {
		t.Error("day 15 should be completed")
	}

	if len(pub.entries) != 1 || pub.entries[0].UserID != f.user.ID || !pub.entries[0].Completed {
		t.Errorf("published = %+v", pub.entries)
	}
}

func TestToggleEntry_Idempotent(t *testing.T) {
	f := newFixture(t, "Read")
	svc := NewHabitService(f.store, WithClock(fixedClock))
	ctx := context.Background()
	req := ToggleRequest{UserID: f.user.ID, HabitID: f.habit.ID, Date: datePtr(core.NewDate(2024, 3, 3)), Completed: boolPtr(true)}

	first, err := svc.ToggleEntry(ctx, req)
	if err != nil {
		t.Fatalf("first ToggleEntry() error = %v", err)
	}
	second, err := svc.ToggleEntry(ctx, req)
	if err != nil {
		t.Fatalf("second ToggleEntry() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("responses differ:\n%+v\n%+v", first, second)
	}

	entries, _ := f.store.ListEntriesForMonth(ctx, f.habit.ID, 2024, 3)
	completed := 0
	for _, e := range entries {
		if e.Completed {
			completed++
		}
	}
	if completed != 1 {
		t.Errorf("completed entries = %d, want 1", completed)
	}

	off, err := svc.ToggleEntry(ctx, ToggleRequest{UserID: f.user.ID, HabitID: f.habit.ID, Date: req.Date, Completed: boolPtr(false)})
	if err != nil || off.Completed || off.Habit.CompletedCount != 0 {
		t.Errorf("set false = %+v, %v", off, err)
	}
}

func TestToggleEntry_Errors(t *testing.T) {
	f := newFixture(t, "Read")
	ctx := context.Background()
	bob, _ := f.store.CreateUser(ctx, "bob@example.com", "hash")
	svc := NewHabitService(f.store, WithClock(fixedClock))

	tests := []struct {
		name string
		req  ToggleRequest
		want error
	}{
		{
			name: "unknown habit",
			req:  ToggleRequest{UserID: f.user.ID, HabitID: 9999, Completed: boolPtr(true)},
			want: core.ErrNotFound,
		},
		{
			name: "habit owned by someone else",
			req:  ToggleRequest{UserID: bob.ID, HabitID: f.habit.ID, Completed: boolPtr(true)},
			want: core.ErrNotFound,
		},
		{
			name: "previous month",
			req:  ToggleRequest{UserID: f.user.ID, HabitID: f.habit.ID, Date: datePtr(core.NewDate(2024, 2, 29)), Completed: boolPtr(true)},
			want: core.ErrForbidden,
		},
		{
			name: "same month last year",
			req:  ToggleRequest{UserID: f.user.ID, HabitID: f.habit.ID, Date: datePtr(core.NewDate(2023, 3, 15)), Completed: boolPtr(true)},
			want: core.ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ToggleEntry(ctx, tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ToggleEntry() error = %v, want %v", err, tt.want)
			}
		})
	}

	// Rejected requests leave no rows behind.
	for _, month := range []int{2, 3} {
		if entries, _ := f.store.ListEntriesForMonth(ctx, f.habit.ID, 2024, month); len(entries) != 0 {
			t.Errorf("month %d has entries %+v, want none", month, entries)
		}
	}
	if entries, _ := f.store.ListEntriesForMonth(ctx, f.habit.ID, 2023, 3); len(entries) != 0 {
		t.Errorf("2023-03 has entries %+v, want none", entries)
	}
}

func TestToggleEntry_RetriesWithoutOwner(t *testing.T) {
	f := newFixture(t, "Read")
	store := &flakyStore{Store: f.store, failWithOwner: true}
	svc := NewHabitService(store, WithClock(fixedClock), WithBackfillToday(false))
	ctx := context.Background()

	got, err := svc.ToggleEntry(ctx, ToggleRequest{UserID: f.user.ID, HabitID: f.habit.ID, Completed: boolPtr(true)})
	if err != nil {
		t.Fatalf("ToggleEntry() error = %v", err)
	}
	if !got.Completed || store.ownerlessCalls != 1 {
		t.Errorf("result = %+v, ownerless calls = %d", got, store.ownerlessCalls)
	}

	// The owner is healed before saving.
	entries, _ := f.store.ListEntriesForMonth(ctx, f.habit.ID, 2024, 3)
	if len(entries) != 1 || entries[0].UserID != f.user.ID {
		t.Errorf("entries = %+v, want owner %d", entries, f.user.ID)
	}
}

func TestToggleEntry_PersistenceFailure(t *testing.T) {
	f := newFixture(t, "Read")
	svc := NewHabitService(&flakyStore{Store: f.store, failAlways: true}, WithClock(fixedClock))

	_, err := svc.ToggleEntry(context.Background(), ToggleRequest{UserID: f.user.ID, HabitID: f.habit.ID, Completed: boolPtr(true)})
	if !errors.Is(err, core.ErrInternal) {
		t.Fatalf("ToggleEntry() error = %v, want ErrInternal", err)
	}
	if _, detail := core.MessageOf(err); detail != "no such column: user_id" {
		t.Errorf("detail = %q", detail)
	}
}

func TestToggleEntry_HealsOwnerlessRow(t *testing.T) {
	f := newFixture(t, "Read")
	ctx := context.Background()
	// A row written before the owner column existed.
	f.store.GetOrCreateEntry(ctx, core.EntryKey{HabitID: f.habit.ID, Date: core.NewDate(2024, 3, 10)}, false)

	svc := NewHabitService(f.store, WithClock(fixedClock))
	if _, err := svc.ToggleEntry(ctx, ToggleRequest{UserID: f.user.ID, HabitID: f.habit.ID, Date: datePtr(core.NewDate(2024, 3, 10)), Completed: boolPtr(true)}); err != nil {
		t.Fatalf("ToggleEntry() error = %v", err)
	}
	if n, _ := f.store.CountCompletedOn(ctx, f.user.ID, core.NewDate(2024, 3, 10)); n != 1 {
		t.Errorf("CountCompletedOn() = %d, want 1 after healing", n)
	}
}

func TestToggleHabitForToday_Flips(t *testing.T) {
	f := newFixture(t, "Read")
	svc := NewHabitService(f.store, WithClock(fixedClock), WithBackfillToday(false))
	ctx := context.Background()

	steps := []bool{true, false, true}
	for i, want := range steps {
		got, err := svc.ToggleHabitForToday(ctx, f.user.ID, f.habit.ID)
		if err != nil {
			t.Fatalf("step %d: error = %v", i, err)
		}
		if got.Completed != want {
			t.Errorf("step %d: completed = %v, want %v", i, got.Completed, want)
		}
	}
}

func TestToggleHabitForToday_FlipsBackfilledEntry(t *testing.T) {
	f := newFixture(t, "Read")
	svc := NewHabitService(f.store, WithClock(fixedClock))
	ctx := context.Background()

	// Viewing the month materializes today as not completed.
	if _, err := svc.HabitsForMonth(ctx, f.user.ID, 2024, 3); err != nil {
		t.Fatalf("HabitsForMonth() error = %v", err)
	}
	got, err := svc.ToggleHabitForToday(ctx, f.user.ID, f.habit.ID)
	if err != nil || !got.Completed {
		t.Errorf("ToggleHabitForToday() = %+v, %v, want completed", got, err)
	}
}

func TestToggleEntry_PublisherFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t, "Read")
	pub := &recordingPublisher{err: errors.New("circuit breaker is open")}
	svc := NewHabitService(f.store, WithClock(fixedClock), WithPublisher(pub))

	if _, err := svc.ToggleEntry(context.Background(), ToggleRequest{UserID: f.user.ID, HabitID: f.habit.ID, Completed: boolPtr(true)}); err != nil {
		t.Fatalf("ToggleEntry() error = %v", err)
	}
	if len(pub.entries) != 1 {
		t.Errorf("publish attempts = %d, want 1", len(pub.entries))
	}
}

func TestToggleHabitForToday_FailedCreateCountsAsFirstTap(t *testing.T) {
	f := newFixture(t, "Read")
	store := &flakyStore{Store: f.store, failWithOwner: true}
	svc := NewHabitService(store, WithClock(fixedClock), WithBackfillToday(false))
	ctx := context.Background()

	got, err := svc.ToggleHabitForToday(ctx, f.user.ID, f.habit.ID)
	if err != nil {
		t.Fatalf("ToggleHabitForToday() error = %v", err)
	}
	if !got.Completed {
		t.Error("a tap whose first create attempt failed should still complete the day")
	}
	entries, _ := f.store.ListEntriesForMonth(ctx, f.habit.ID, 2024, 3)
	if len(entries) != 1 || !entries[0].Completed {
		t.Errorf("entries = %+v, want one completed row", entries)
	}
}

// lockstepStore holds every GetOrCreateEntry caller until all of them have
// read the row.
type lockstepStore struct {
	*memory.Store
	reads sync.WaitGroup
}

func (s *lockstepStore) GetOrCreateEntry(ctx context.Context, key core.EntryKey, def bool) (core.HabitEntry, bool, error) {
	e, created, err := s.Store.GetOrCreateEntry(ctx, key, def)
	s.reads.Done()
	s.reads.Wait()
	return e, created, err
}

func TestToggleHabitForToday_InterleavedFlipsLoseAnUpdate(t *testing.T) {
	f := newFixture(t, "Read")
	ctx := context.Background()
	setup := NewHabitService(f.store, WithClock(fixedClock), WithBackfillToday(false))
	if _, err := setup.ToggleEntry(ctx, ToggleRequest{UserID: f.user.ID, HabitID: f.habit.ID, Completed: boolPtr(false)}); err != nil {
		t.Fatalf("ToggleEntry() error = %v", err)
	}

	store := &lockstepStore{Store: f.store}
	store.reads.Add(2)
	svc := NewHabitService(store, WithClock(fixedClock), WithBackfillToday(false))

	results := make([]core.ToggleResult, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := svc.ToggleHabitForToday(ctx, f.user.ID, f.habit.ID)
			if err != nil {
				t.Errorf("ToggleHabitForToday() error = %v", err)
				return
			}
			results[i] = got
		}(i)
	}
	wg.Wait()

	// Run one after the other the two flips would cancel out. Interleaved,
	// both flip the same stored false.
	if !results[0].Completed || !results[1].Completed {
		t.Errorf("results = %v, %v; want both completed", results[0].Completed, results[1].Completed)
	}
	n, err := f.store.CountCompletedOn(ctx, f.user.ID, core.NewDate(2024, 3, 15))
	if err != nil || n != 1 {
		t.Errorf("CountCompletedOn() = %d, %v; want 1", n, err)
	}
}

// blockingPublisher waits until the caller gives up.
type blockingPublisher struct {
	err error
}

func (p *blockingPublisher) PublishEntryToggled(ctx context.Context, _ core.HabitEntry) error {
	<-ctx.Done()
	p.err = ctx.Err()
	return p.err
}

func TestToggleEntry_PublishIsBounded(t *testing.T) {
	f := newFixture(t, "Read")
	pub := &blockingPublisher{}
	svc := NewHabitService(f.store, WithClock(fixedClock), WithPublisher(pub), WithPublishWait(20*time.Millisecond))

	start := time.Now()
	got, err := svc.ToggleEntry(context.Background(), ToggleRequest{UserID: f.user.ID, HabitID: f.habit.ID, Completed: boolPtr(true)})
	if err != nil {
		t.Fatalf("ToggleEntry() error = %v", err)
	}
	if !got.Completed {
		t.Error("toggle should succeed when the broker stalls")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("ToggleEntry() took %v, want it bounded by the publish wait", elapsed)
	}
	if !errors.Is(pub.err, context.DeadlineExceeded) {
		t.Errorf("publisher saw %v, want context.DeadlineExceeded", pub.err)
	}
}
