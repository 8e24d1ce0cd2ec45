package core

import "math"

// MonthlyProgress is the per-day completion roll-up of one month.
type MonthlyProgress struct {
	Days        []int     `json:"days"`
	Counts      []int     `json:"counts"`
	Percentages []float64 `json:"percentages"`
	Labels      []string  `json:"labels"`
}

// YearlyProgress is the per-month completion roll-up of one year.
type YearlyProgress struct {
	Months      []string  `json:"months"`
	Counts      []int     `json:"counts"`
	Percentages []float64 `json:"percentages"`
}

type HabitDay struct {
	Day       int  `json:"day"`
	Completed bool `json:"completed"`
}

// HabitMonth is one habit's calendar for a month.
type HabitMonth struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Days           []HabitDay `json:"days"`
	CompletedCount int        `json:"completed_count"`
	Percentage     float64    `json:"percentage"`
}

type HabitsForMonth struct {
	Habits []HabitMonth `json:"habits"`
	NDays  int          `json:"ndays"`
}

type ToggleResult struct {
	HabitID   int64      `json:"habit_id"`
	Date      string     `json:"date"`
	Completed bool       `json:"completed"`
	Habit     HabitMonth `json:"habit"`
}

type JournalPayload struct {
	Date string `json:"date"`
	Text string `json:"text"`
}

// Percentage returns part/whole*100 rounded to one decimal, 0 when whole is 0.
func Percentage(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}
