package sheets

import (
	"context"
	"time"
)

// EntryRow is one mirrored completion change.
type EntryRow struct {
	Date       string
	HabitTitle string
	UserEmail  string
	Completed  bool
	SyncedAt   time.Time
}

// Year returns the year of Date, or of SyncedAt when Date is malformed.
func (r EntryRow) Year() int {
	if t, err := time.Parse("2006-01-02", r.Date); err == nil {
		return t.Year()
	}
	return r.SyncedAt.Year()
}

// Ports for outbound adapters.
type (
	EntryAppender interface {
		// AppendEntry writes the row and returns a reference to where it landed.
		AppendEntry(ctx context.Context, row EntryRow) (rowRef string, err error)
	}
)
