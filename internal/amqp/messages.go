package amqp

import (
	"encoding/json"
	"time"

	"habitual/internal/core"
)

// EntryToggledMessage announces a persisted completion change. The worker
// reloads habit and user details from the database.
type EntryToggledMessage struct {
	EntryID   int64     `json:"entry_id"`
	HabitID   int64     `json:"habit_id"`
	UserID    int64     `json:"user_id"`
	Date      string    `json:"date"`
	Completed bool      `json:"completed"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntryToggledMessage(e core.HabitEntry) *EntryToggledMessage {
	return &EntryToggledMessage{
		EntryID:   e.ID,
		HabitID:   e.HabitID,
		UserID:    e.UserID,
		Date:      e.Date.String(),
		Completed: e.Completed,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntryToggledMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntryToggledMessageFromJSON(data []byte) (*EntryToggledMessage, error) {
	var msg EntryToggledMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
