package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"habitual/internal/core"
	"habitual/internal/storage"
)

type entryKey struct {
	habitID int64
	date    string
}

type journalKey struct {
	userID int64
	date   string
}

// Store keeps all data in process memory. It mirrors the SQLite
// semantics, including the unique (habit, date) entry constraint.
type Store struct {
	mu      sync.Mutex
	nextID  int64
	users   map[int64]core.User
	habits  map[int64]core.Habit
	entries map[entryKey]core.HabitEntry
	journal map[journalKey]core.JournalEntry
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:   make(map[int64]core.User),
		habits:  make(map[int64]core.Habit),
		entries: make(map[entryKey]core.HabitEntry),
		journal: make(map[journalKey]core.JournalEntry),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateUser(_ context.Context, email, passwordHash string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return core.User{}, fmt.Errorf("create user %s: %w", email, core.ErrConflict)
		}
	}
	u := core.User{ID: s.id(), Email: email, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("get user by email: %w", core.ErrNotFound)
}

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("get user %d: %w", id, core.ErrNotFound)
	}
	return u, nil
}

func (s *Store) FirstUser(_ context.Context) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first core.User
	for _, u := range s.users {
		if first.ID == 0 || u.ID < first.ID {
			first = u
		}
	}
	if first.ID == 0 {
		return core.User{}, fmt.Errorf("get first user: %w", core.ErrNotFound)
	}
	return first, nil
}

func (s *Store) CreateHabit(_ context.Context, userID int64, title string) (core.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return core.Habit{}, fmt.Errorf("create habit: unknown user %d", userID)
	}
	h := core.Habit{ID: s.id(), UserID: userID, Title: title, CreatedAt: time.Now().UTC()}
	s.habits[h.ID] = h
	return h, nil
}

func (s *Store) GetHabit(_ context.Context, id int64) (core.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habits[id]
	if !ok {
		return core.Habit{}, fmt.Errorf("get habit %d: %w", id, core.ErrNotFound)
	}
	return h, nil
}

func (s *Store) GetHabitForUser(_ context.Context, userID, habitID int64) (core.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habits[habitID]
	if !ok || h.UserID != userID {
		return core.Habit{}, fmt.Errorf("get habit %d: %w", habitID, core.ErrNotFound)
	}
	return h, nil
}

func (s *Store) ListHabits(_ context.Context, userID int64) ([]core.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Habit
	for _, h := range s.habits {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CountHabits(ctx context.Context, userID int64) (int, error) {
	habits, err := s.ListHabits(ctx, userID)
	return len(habits), err
}

func (s *Store) CountCompletedOn(ctx context.Context, userID int64, date core.Date) (int, error) {
	return s.CountCompletedBetween(ctx, userID, date, date)
}

func (s *Store) CountCompletedBetween(_ context.Context, userID int64, from, to core.Date) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lo, hi := from.String(), to.String()
	n := 0
	for k, e := range s.entries {
		if e.UserID == userID && e.Completed && k.date >= lo && k.date <= hi {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListEntriesForMonth(_ context.Context, habitID int64, year, month int) ([]core.HabitEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.HabitEntry
	for k, e := range s.entries {
		if k.habitID == habitID && e.Date.Year() == year && e.Date.Month() == month {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (s *Store) GetOrCreateEntry(_ context.Context, key core.EntryKey, defaultCompleted bool) (core.HabitEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.habits[key.HabitID]; !ok {
		return core.HabitEntry{}, false, fmt.Errorf("insert entry: unknown habit %d", key.HabitID)
	}
	k := entryKey{habitID: key.HabitID, date: key.Date.String()}
	if e, ok := s.entries[k]; ok {
		return e, false, nil
	}
	e := core.HabitEntry{
		ID:        s.id(),
		HabitID:   key.HabitID,
		UserID:    key.UserID,
		Date:      key.Date,
		Completed: defaultCompleted,
	}
	s.entries[k] = e
	return e, true, nil
}

func (s *Store) SaveEntry(_ context.Context, entry core.HabitEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if e.ID == entry.ID {
			e.Completed = entry.Completed
			e.UserID = entry.UserID
			s.entries[k] = e
			return nil
		}
	}
	return fmt.Errorf("save entry %d: %w", entry.ID, core.ErrNotFound)
}

func (s *Store) GetJournal(_ context.Context, userID int64, date core.Date) (core.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.journal[journalKey{userID: userID, date: date.String()}]
	if !ok {
		return core.JournalEntry{}, fmt.Errorf("get journal entry: %w", core.ErrNotFound)
	}
	return j, nil
}

func (s *Store) UpsertJournal(_ context.Context, userID int64, date core.Date, text string) (core.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := journalKey{userID: userID, date: date.String()}
	j, ok := s.journal[k]
	if !ok {
		j = core.JournalEntry{ID: s.id(), UserID: userID, Date: date}
	}
	j.Text = text
	s.journal[k] = j
	return j, nil
}
