package services

import (
	"context"

	"habitual/internal/core"
)

// GetJournal returns the user's note for the date, or empty text.
func (s *HabitService) GetJournal(ctx context.Context, userID int64, date *core.Date) (core.JournalPayload, error) {
	day := s.dateOrToday(date)
	entry, err := s.store.GetJournal(ctx, userID, day)
	if err != nil {
		if isNotFound(err) {
			return core.JournalPayload{Date: day.String(), Text: ""}, nil
		}
		return core.JournalPayload{}, core.Internal("could not load journal", err)
	}
	return core.JournalPayload{Date: day.String(), Text: entry.Text}, nil
}

// UpsertJournal creates or overwrites the user's note for the date.
func (s *HabitService) UpsertJournal(ctx context.Context, userID int64, date *core.Date, text string) (core.JournalPayload, error) {
	day := s.dateOrToday(date)
	entry, err := s.store.UpsertJournal(ctx, userID, day, text)
	if err != nil {
		return core.JournalPayload{}, core.Internal("could not save journal", err)
	}
	return core.JournalPayload{Date: day.String(), Text: entry.Text}, nil
}

func (s *HabitService) dateOrToday(date *core.Date) core.Date {
	if date != nil {
		return *date
	}
	return s.Today()
}
