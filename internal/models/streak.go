package models

// StreakState is derived from a habit's log history on every read.
// It is never persisted.
type StreakState struct {
	CurrentStreak   int  `json:"currentStreak"`
	CompletedToday  bool `json:"completedToday"`
	MissedYesterday bool `json:"missedYesterday"`
}

// HabitView is a habit annotated with its current streak state.
type HabitView struct {
	Habit
	StreakState
}
