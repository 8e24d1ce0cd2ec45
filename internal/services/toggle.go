package services

import (
	"context"
	"fmt"
	"log/slog"

	"habitual/internal/core"
)

// ToggleRequest describes a change to one day of one habit. A nil Date
// means today. A nil Completed flips the stored value, with a freshly
// created entry counting as completed.
//
// A flip reads and then writes the entry without a lock, so two flips of
// the same day racing each other can both see the old value and one of
// them is lost. Clients that need a definite state should set Completed.
type ToggleRequest struct {
	UserID    int64
	HabitID   int64
	Date      *core.Date
	Completed *bool
}

// ToggleEntry sets or flips a single entry inside the current month and
// returns the recomputed month for the habit.
func (s *HabitService) ToggleEntry(ctx context.Context, req ToggleRequest) (core.ToggleResult, error) {
	habit, err := s.store.GetHabitForUser(ctx, req.UserID, req.HabitID)
	if err != nil {
		if isNotFound(err) {
			return core.ToggleResult{}, core.NotFound("habit not found")
		}
		return core.ToggleResult{}, core.Internal("could not load habit", err)
	}

	today := s.Today()
	date := today
	if req.Date != nil {
		date = *req.Date
	}
	if !date.SameMonth(today) {
		return core.ToggleResult{}, core.Forbidden("only entries in the current month can be changed")
	}

	// Legacy flips treat a brand new entry as the first tap.
	defaultCompleted := req.Completed == nil

	key := core.EntryKey{HabitID: habit.ID, UserID: habit.UserID, Date: date}
	entry, created, err := s.store.GetOrCreateEntry(ctx, key, defaultCompleted)
	if err != nil {
		slog.WarnContext(ctx, "Entry creation failed, retrying without owner",
			"habit_id", habit.ID, "date", date.String(), "error", err)
		key.UserID = 0
		entry, created, err = s.store.GetOrCreateEntry(ctx, key, defaultCompleted)
		if err != nil {
			return core.ToggleResult{}, core.Internal("could not create entry", err)
		}
	}

	switch {
	case req.Completed != nil:
		entry.Completed = *req.Completed
	case !created:
		entry.Completed = !entry.Completed
	}

	if entry.UserID == 0 {
		entry.UserID = habit.UserID
	}
	if entry.UserID != habit.UserID {
		return core.ToggleResult{}, core.Internal("entry owner mismatch",
			fmt.Errorf("entry %d owner %d differs from habit owner %d", entry.ID, entry.UserID, habit.UserID))
	}

	if err := s.store.SaveEntry(ctx, entry); err != nil {
		return core.ToggleResult{}, core.Internal("could not save entry", err)
	}

	slog.InfoContext(ctx, "Entry toggled",
		"habit_id", habit.ID, "date", date.String(), "completed", entry.Completed, "created", created)
	s.publish(ctx, entry)

	hm, err := s.HabitMonth(ctx, habit, date.Year(), date.Month())
	if err != nil {
		return core.ToggleResult{}, err
	}

	return core.ToggleResult{
		HabitID:   habit.ID,
		Date:      date.String(),
		Completed: entry.Completed,
		Habit:     hm,
	}, nil
}

// ToggleHabitForToday flips today's entry for the habit. Concurrent flips
// of the same habit may collapse into one; see ToggleRequest.
func (s *HabitService) ToggleHabitForToday(ctx context.Context, userID, habitID int64) (core.ToggleResult, error) {
	return s.ToggleEntry(ctx, ToggleRequest{UserID: userID, HabitID: habitID})
}
