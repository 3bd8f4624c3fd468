package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julianstephens/habitd/internal/constants"
)

// Habit is a single trackable habit owned by exactly one user.
type Habit struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	Archived  bool      `json:"is_archived" db:"is_archived"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Validate trims the title in place and checks its length.
func (h *Habit) Validate() error {
	h.Title = strings.TrimSpace(h.Title)
	if h.Title == "" {
		return fmt.Errorf("habit title cannot be empty")
	}
	if utf8.RuneCountInString(h.Title) > constants.MaxHabitTitleLength {
		return fmt.Errorf("habit title exceeds %d characters", constants.MaxHabitTitleLength)
	}
	if h.UserID == "" {
		return fmt.Errorf("habit owner cannot be empty")
	}
	return nil
}

// OwnedBy reports whether the habit belongs to userID.
func (h Habit) OwnedBy(userID string) bool {
	return userID != "" && h.UserID == userID
}

type LogStatus string

const (
	LogStatusCompleted LogStatus = constants.LogStatusCompleted
	LogStatusFrozen    LogStatus = constants.LogStatusFrozen
)

func (s LogStatus) Valid() bool {
	return s == LogStatusCompleted || s == LogStatusFrozen
}

// LogEntry records that a habit counted on a calendar day.
// Completed and frozen entries both count toward a streak.
type LogEntry struct {
	HabitID string    `json:"habit_id" db:"habit_id"`
	Day     string    `json:"check_date" db:"check_date"` // YYYY-MM-DD format
	Status  LogStatus `json:"status" db:"status"`
}

func (e LogEntry) Validate() error {
	if e.HabitID == "" {
		return fmt.Errorf("log entry habit id cannot be empty")
	}
	if _, err := time.Parse(constants.DateFormat, e.Day); err != nil {
		return fmt.Errorf("invalid date format (expected YYYY-MM-DD): %w", err)
	}
	if !e.Status.Valid() {
		return fmt.Errorf("invalid log status %q", e.Status)
	}
	return nil
}
