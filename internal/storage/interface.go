package storage

import (
	"context"

	"github.com/julianstephens/habitd/internal/models"
)

// UserStore owns user rows and the freeze balance they carry.
type UserStore interface {
	// EnsureUser inserts the user if no row with that id exists.
	EnsureUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, id string) (models.User, error)
	GetFreezeBalance(ctx context.Context, userID string) (int, error)
	// EarnFreeze adds one freeze and returns the new balance.
	EarnFreeze(ctx context.Context, userID string) (int, error)
	// SpendFreezes removes amount freezes only if the balance covers it.
	SpendFreezes(ctx context.Context, userID string, amount int) (int, error)
}

type HabitStore interface {
	AddHabit(ctx context.Context, habit models.Habit) error
	GetHabit(ctx context.Context, id string) (models.Habit, error)
	// ListHabits returns the user's non-archived habits, newest first.
	ListHabits(ctx context.Context, userID string) ([]models.Habit, error)
}

// LogStore is append-only: entries are never updated or deleted.
type LogStore interface {
	// AddLogEntry returns ErrDuplicateEntry when the habit already has an
	// entry for that day.
	AddLogEntry(ctx context.Context, entry models.LogEntry) error
	GetLogsForHabits(ctx context.Context, habitIDs []string) ([]models.LogEntry, error)
	// RepairWithFreeze spends the repair cost and appends entry in one
	// transaction. Either both happen or neither does. Returns the
	// remaining balance.
	RepairWithFreeze(ctx context.Context, userID string, entry models.LogEntry) (int, error)
}

type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Load(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Schema
	Migrate(ctx context.Context, logFn func(string)) (int, error)
	SchemaVersion(ctx context.Context) (current, latest int, err error)

	// Backend returns "sqlite" or "postgres".
	Backend() string
	// Location describes where the data lives without leaking credentials.
	Location() string

	UserStore
	HabitStore
	LogStore
}
