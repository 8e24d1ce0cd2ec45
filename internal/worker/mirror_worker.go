package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"habitual/internal/amqp"
	"habitual/internal/core"
	applog "habitual/internal/log"
	"habitual/internal/sheets"
)

// Lookup is the read side the worker needs to enrich a message.
type Lookup interface {
	GetHabit(ctx context.Context, id int64) (core.Habit, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
}

// MirrorWorker copies toggled entries into a spreadsheet.
type MirrorWorker struct {
	lookup   Lookup
	appender sheets.EntryAppender
	now      func() time.Time
}

func NewMirrorWorker(lookup Lookup, appender sheets.EntryAppender) *MirrorWorker {
	return &MirrorWorker{lookup: lookup, appender: appender, now: time.Now}
}

// HandleEntryToggled appends one row per message. Messages for habits
// that no longer exist are acknowledged and dropped.
func (w *MirrorWorker) HandleEntryToggled(ctx context.Context, msg *amqp.EntryToggledMessage) error {
	slog.InfoContext(ctx, "Processing entry toggled message",
		"entry_id", msg.EntryID,
		"habit_id", msg.HabitID)

	habit, err := w.lookup.GetHabit(ctx, msg.HabitID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			slog.WarnContext(ctx, "Habit no longer exists, dropping message", "habit_id", msg.HabitID)
			return nil
		}
		return fmt.Errorf("get habit: %w", err)
	}

	ownerID := msg.UserID
	if ownerID == 0 {
		ownerID = habit.UserID
	}
	email := ""
	user, err := w.lookup.GetUser(ctx, ownerID)
	switch {
	case err == nil:
		email = user.Email
	case errors.Is(err, core.ErrNotFound):
		slog.WarnContext(ctx, "Entry owner not found, mirroring without email", "user_id", ownerID)
	default:
		return fmt.Errorf("get user: %w", err)
	}

	structured := applog.NewStructuredLogger(applog.FromContext(ctx))
	ref, err := w.appender.AppendEntry(ctx, sheets.EntryRow{
		Date:       msg.Date,
		HabitTitle: habit.Title,
		UserEmail:  email,
		Completed:  msg.Completed,
		SyncedAt:   w.now(),
	})
	if err != nil {
		structured.LogError(ctx, "Append entry row failed", err, applog.ComponentSheets, applog.OpAppend,
			applog.NewFields().WithEntry(msg.EntryID, habit.ID, ownerID, msg.Date, msg.Completed))
		return fmt.Errorf("append entry row: %w", err)
	}

	structured.LogEntryMirrored(ctx, msg.EntryID, habit.ID, ownerID, msg.Date, msg.Completed, ref)
	return nil
}
