package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"habitual/internal/core"
	"habitual/internal/storage"
)

// SeedTitles are the habits created by Seed.
var SeedTitles = []string{"Exercise", "Read", "Meditate"}

const (
	weekdayCompletionRate = 0.7
	weekendCompletionRate = 0.4
)

type SeedResult struct {
	User      core.User
	Habits    []core.Habit
	Entries   int
	Completed int
}

// Seeder fills the first user's account with sample data.
type Seeder struct {
	store storage.Store
	rng   *rand.Rand
}

// NewSeeder uses rng for completion draws; nil picks a random seed.
func NewSeeder(store storage.Store, rng *rand.Rand) *Seeder {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Seeder{store: store, rng: rng}
}

// Seed creates the sample habits if needed and writes one entry per habit
// for every day from January 1st up to today.
func (s *Seeder) Seed(ctx context.Context, now time.Time) (SeedResult, error) {
	user, err := s.store.FirstUser(ctx)
	if err != nil {
		if isNotFound(err) {
			return SeedResult{}, fmt.Errorf("no user found, create a user first: %w", err)
		}
		return SeedResult{}, fmt.Errorf("load first user: %w", err)
	}

	habits, err := s.ensureHabits(ctx, user.ID)
	if err != nil {
		return SeedResult{}, err
	}

	result := SeedResult{User: user, Habits: habits}
	today := core.DateOf(now)
	for day := core.NewDate(today.Year(), 1, 1); !day.After(today.Time); day = day.AddDays(1) {
		rate := weekdayCompletionRate
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			rate = weekendCompletionRate
		}

		for _, h := range habits {
			completed := s.rng.Float64() < rate
			key := core.EntryKey{HabitID: h.ID, UserID: user.ID, Date: day}
			entry, _, err := s.store.GetOrCreateEntry(ctx, key, completed)
			if err != nil {
				return result, fmt.Errorf("seed entry %s: %w", day, err)
			}
			entry.Completed = completed
			entry.UserID = user.ID
			if err := s.store.SaveEntry(ctx, entry); err != nil {
				return result, fmt.Errorf("seed entry %s: %w", day, err)
			}
			result.Entries++
			if completed {
				result.Completed++
			}
		}
	}

	slog.InfoContext(ctx, "Seeded sample habits and entries",
		"user_id", user.ID, "habits", len(habits), "entries", result.Entries)
	return result, nil
}

func (s *Seeder) ensureHabits(ctx context.Context, userID int64) ([]core.Habit, error) {
	existing, err := s.store.ListHabits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	byTitle := make(map[string]core.Habit, len(existing))
	for _, h := range existing {
		if _, ok := byTitle[h.Title]; !ok {
			byTitle[h.Title] = h
		}
	}

	habits := make([]core.Habit, 0, len(SeedTitles))
	for _, title := range SeedTitles {
		h, ok := byTitle[title]
		if !ok {
			h, err = s.store.CreateHabit(ctx, userID, title)
			if err != nil {
				return nil, fmt.Errorf("create habit %q: %w", title, err)
			}
		}
		habits = append(habits, h)
	}
	return habits, nil
}
