package services

import (
	"context"

	"habitual/internal/core"
)

// MonthlyProgress counts, for every day of the month, the user's completed
// entries and relates them to the current number of habits.
func (s *HabitService) MonthlyProgress(ctx context.Context, userID int64, year, month int) (core.MonthlyProgress, error) {
	if err := validateMonth(year, month); err != nil {
		return core.MonthlyProgress{}, err
	}

	total, err := s.store.CountHabits(ctx, userID)
	if err != nil {
		return core.MonthlyProgress{}, core.Internal("could not count habits", err)
	}

	ndays := core.DaysInMonth(year, month)
	out := core.MonthlyProgress{
		Days:        make([]int, 0, ndays),
		Counts:      make([]int, 0, ndays),
		Percentages: make([]float64, 0, ndays),
		Labels:      make([]string, 0, ndays),
	}
	for day := 1; day <= ndays; day++ {
		date := core.NewDate(year, month, day)
		count, err := s.store.CountCompletedOn(ctx, userID, date)
		if err != nil {
			return core.MonthlyProgress{}, core.Internal("could not count entries", err)
		}
		out.Days = append(out.Days, day)
		out.Counts = append(out.Counts, count)
		out.Percentages = append(out.Percentages, core.Percentage(count, total))
		out.Labels = append(out.Labels, date.String())
	}
	return out, nil
}

// YearlyProgress rolls completed entries up per month.
func (s *HabitService) YearlyProgress(ctx context.Context, userID int64, year int) (core.YearlyProgress, error) {
	if err := validateMonth(year, 1); err != nil {
		return core.YearlyProgress{}, err
	}

	total, err := s.store.CountHabits(ctx, userID)
	if err != nil {
		return core.YearlyProgress{}, core.Internal("could not count habits", err)
	}

	out := core.YearlyProgress{
		Months:      make([]string, 0, 12),
		Counts:      make([]int, 0, 12),
		Percentages: make([]float64, 0, 12),
	}
	for month := 1; month <= 12; month++ {
		first, last := core.MonthBounds(year, month)
		count, err := s.store.CountCompletedBetween(ctx, userID, first, last)
		if err != nil {
			return core.YearlyProgress{}, core.Internal("could not count entries", err)
		}
		out.Months = append(out.Months, core.MonthLabel(year, month))
		out.Counts = append(out.Counts, count)
		out.Percentages = append(out.Percentages, core.Percentage(count, total*core.DaysInMonth(year, month)))
	}
	return out, nil
}

// HabitsForMonth returns every habit of the user with its calendar.
func (s *HabitService) HabitsForMonth(ctx context.Context, userID int64, year, month int) (core.HabitsForMonth, error) {
	if err := validateMonth(year, month); err != nil {
		return core.HabitsForMonth{}, err
	}

	habits, err := s.store.ListHabits(ctx, userID)
	if err != nil {
		return core.HabitsForMonth{}, core.Internal("could not list habits", err)
	}

	out := core.HabitsForMonth{
		Habits: make([]core.HabitMonth, 0, len(habits)),
		NDays:  core.DaysInMonth(year, month),
	}
	for _, habit := range habits {
		hm, err := s.HabitMonth(ctx, habit, year, month)
		if err != nil {
			return core.HabitsForMonth{}, err
		}
		out.Habits = append(out.Habits, hm)
	}
	return out, nil
}

// HabitMonth builds one habit's calendar. When the month is the current
// one, today's entry is created first if missing.
func (s *HabitService) HabitMonth(ctx context.Context, habit core.Habit, year, month int) (core.HabitMonth, error) {
	today := s.Today()
	if s.backfillToday && today.Year() == year && today.Month() == month {
		key := core.EntryKey{HabitID: habit.ID, UserID: habit.UserID, Date: today}
		if _, _, err := s.store.GetOrCreateEntry(ctx, key, false); err != nil {
			return core.HabitMonth{}, core.Internal("could not create today's entry", err)
		}
	}

	entries, err := s.store.ListEntriesForMonth(ctx, habit.ID, year, month)
	if err != nil {
		return core.HabitMonth{}, core.Internal("could not list entries", err)
	}

	byDay := make(map[int]bool, len(entries))
	for _, e := range entries {
		byDay[e.Date.Day()] = e.Completed
	}

	ndays := core.DaysInMonth(year, month)
	out := core.HabitMonth{
		ID:    habit.ID,
		Title: habit.Title,
		Days:  make([]core.HabitDay, 0, ndays),
	}
	for day := 1; day <= ndays; day++ {
		completed := byDay[day]
		if completed {
			out.CompletedCount++
		}
		out.Days = append(out.Days, core.HabitDay{Day: day, Completed: completed})
	}
	out.Percentage = core.Percentage(out.CompletedCount, ndays)
	return out, nil
}
