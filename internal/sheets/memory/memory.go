package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"habitual/internal/sheets"
)

// Recorder keeps appended rows in memory. The worker falls back to it
// when no spreadsheet is configured.
type Recorder struct {
	mu   sync.Mutex
	rows []sheets.EntryRow
}

var _ sheets.EntryAppender = (*Recorder)(nil)

func New() *Recorder {
	return &Recorder{}
}

// AppendEntry stores the row and returns a synthetic row reference.
func (r *Recorder) AppendEntry(ctx context.Context, row sheets.EntryRow) (string, error) {
	r.mu.Lock()
	r.rows = append(r.rows, row)
	n := len(r.rows)
	r.mu.Unlock()

	slog.DebugContext(ctx, "Entry recorded in memory", "date", row.Date, "habit", row.HabitTitle, "completed", row.Completed)
	return fmt.Sprintf("mem:%d", n), nil
}

// Rows returns a copy of everything appended so far.
func (r *Recorder) Rows() []sheets.EntryRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sheets.EntryRow(nil), r.rows...)
}
