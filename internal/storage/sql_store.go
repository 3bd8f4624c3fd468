package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"

	"github.com/julianstephens/habitd/internal/constants"
	apperrors "github.com/julianstephens/habitd/internal/errors"
	"github.com/julianstephens/habitd/internal/migration"
	"github.com/julianstephens/habitd/internal/models"
)

// UniqueViolationFunc reports whether err is the driver's unique-constraint error.
type UniqueViolationFunc func(error) bool

// SQLStore is the query layer shared by the sqlite and postgres backends.
// Queries are written with ? placeholders and rebound for the driver.
type SQLStore struct {
	db           *sqlx.DB
	migrations   fs.FS
	isUniqueViol UniqueViolationFunc
}

func NewSQLStore(db *sqlx.DB, migrationFS fs.FS, isUnique UniqueViolationFunc) *SQLStore {
	if isUnique == nil {
		isUnique = func(error) bool { return false }
	}
	return &SQLStore{db: db, migrations: migrationFS, isUniqueViol: isUnique}
}

// DB exposes the underlying handle for diagnostics.
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Migrate(ctx context.Context, logFn func(string)) (int, error) {
	return migration.NewRunner(s.db, s.migrations).ApplyMigrations(ctx, logFn)
}

func (s *SQLStore) SchemaVersion(ctx context.Context) (int, int, error) {
	runner := migration.NewRunner(s.db, s.migrations)
	current, err := runner.GetCurrentVersion(ctx)
	if err != nil {
		return 0, 0, err
	}
	latest, err := runner.GetLatestVersion()
	if err != nil {
		return current, 0, err
	}
	return current, latest, nil
}

// ValidateSchema fails when the database was migrated by a newer release.
func (s *SQLStore) ValidateSchema(ctx context.Context) error {
	return migration.NewRunner(s.db, s.migrations).ValidateVersion(ctx)
}

// Users

func (s *SQLStore) EnsureUser(ctx context.Context, user models.User) error {
	query := s.db.Rebind(`INSERT INTO users (id, email) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`)
	if _, err := s.db.ExecContext(ctx, query, user.ID, user.Email); err != nil {
		return apperrors.WrapOp("ensure", "user", user.ID, err)
	}
	return nil
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (models.User, error) {
	var user models.User
	query := s.db.Rebind(`SELECT id, email, streak_freezes, created_at FROM users WHERE id = ?`)
	if err := s.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, apperrors.WrapOp("get", "user", id, ErrNotFound)
		}
		return models.User{}, apperrors.WrapOp("get", "user", id, err)
	}
	return user, nil
}

func (s *SQLStore) GetFreezeBalance(ctx context.Context, userID string) (int, error) {
	return freezeBalance(ctx, s.db, userID)
}

func (s *SQLStore) EarnFreeze(ctx context.Context, userID string) (int, error) {
	var balance int
	query := s.db.Rebind(`UPDATE users SET streak_freezes = streak_freezes + ? WHERE id = ? RETURNING streak_freezes`)
	if err := s.db.GetContext(ctx, &balance, query, constants.FreezesPerAdWatch, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperrors.WrapOp("earn", "freeze", userID, ErrNotFound)
		}
		return 0, apperrors.WrapOp("earn", "freeze", userID, err)
	}
	return balance, nil
}

func (s *SQLStore) SpendFreezes(ctx context.Context, userID string, amount int) (int, error) {
	return spendFreezes(ctx, s.db, userID, amount)
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx. Helpers that run
// inside a transaction must only ever touch the tx: the sqlite backend
// holds a single connection.
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Rebind(query string) string
}

func freezeBalance(ctx context.Context, q queryer, userID string) (int, error) {
	var balance int
	if err := q.GetContext(ctx, &balance, q.Rebind(`SELECT streak_freezes FROM users WHERE id = ?`), userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperrors.WrapOp("get", "freeze balance", userID, ErrNotFound)
		}
		return 0, apperrors.WrapOp("get", "freeze balance", userID, err)
	}
	return balance, nil
}

// spendFreezes is the serialization point for the freeze balance: the
// decrement only matches when the balance still covers amount.
func spendFreezes(ctx context.Context, q queryer, userID string, amount int) (int, error) {
	if amount < 1 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, fmt.Sprintf("freeze amount must be at least 1, got %d", amount))
	}

	var balance int
	query := q.Rebind(`UPDATE users SET streak_freezes = streak_freezes - ? WHERE id = ? AND streak_freezes >= ? RETURNING streak_freezes`)
	err := q.GetContext(ctx, &balance, query, amount, userID, amount)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.WrapOp("spend", "freeze", userID, err)
	}

	// Nothing matched: either the user is missing or the balance is short.
	if _, err := freezeBalance(ctx, q, userID); err != nil {
		return 0, err
	}
	return 0, apperrors.WrapOp("spend", "freeze", userID, apperrors.ErrInsufficientBalance)
}

// Habits

func (s *SQLStore) AddHabit(ctx context.Context, habit models.Habit) error {
	if err := habit.Validate(); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error(), err)
	}
	query := s.db.Rebind(`INSERT INTO habits (id, user_id, title, is_archived, created_at) VALUES (?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, habit.ID, habit.UserID, habit.Title, habit.Archived, habit.CreatedAt.UTC())
	if err != nil {
		return apperrors.WrapOp("insert", "habit", habit.ID, err)
	}
	return nil
}

func (s *SQLStore) GetHabit(ctx context.Context, id string) (models.Habit, error) {
	var habit models.Habit
	query := s.db.Rebind(`SELECT id, user_id, title, is_archived, created_at FROM habits WHERE id = ?`)
	if err := s.db.GetContext(ctx, &habit, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Habit{}, apperrors.WrapOp("get", "habit", id, ErrNotFound)
		}
		return models.Habit{}, apperrors.WrapOp("get", "habit", id, err)
	}
	return habit, nil
}

func (s *SQLStore) ListHabits(ctx context.Context, userID string) ([]models.Habit, error) {
	habits := []models.Habit{}
	query := s.db.Rebind(`
		SELECT id, user_id, title, is_archived, created_at
		FROM habits
		WHERE user_id = ? AND is_archived = ?
		ORDER BY created_at DESC, id ASC`)
	if err := s.db.SelectContext(ctx, &habits, query, userID, false); err != nil {
		return nil, apperrors.WrapOp("list", "habits", userID, err)
	}
	return habits, nil
}

// Logs

func (s *SQLStore) AddLogEntry(ctx context.Context, entry models.LogEntry) error {
	return s.insertLogEntry(ctx, s.db, entry)
}

func (s *SQLStore) insertLogEntry(ctx context.Context, q queryer, entry models.LogEntry) error {
	if err := entry.Validate(); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error(), err)
	}
	query := q.Rebind(`INSERT INTO habit_logs (habit_id, check_date, status) VALUES (?, ?, ?)`)
	if _, err := q.ExecContext(ctx, query, entry.HabitID, entry.Day, string(entry.Status)); err != nil {
		if s.isUniqueViol(err) {
			return apperrors.WrapOp("insert", "habit_log", entry.HabitID, ErrDuplicateEntry)
		}
		return apperrors.WrapOp("insert", "habit_log", entry.HabitID, err)
	}
	return nil
}

// GetLogsForHabits loads every entry for the given habits in one query,
// newest day first.
func (s *SQLStore) GetLogsForHabits(ctx context.Context, habitIDs []string) ([]models.LogEntry, error) {
	if len(habitIDs) == 0 {
		return []models.LogEntry{}, nil
	}

	query, args, err := sqlx.In(`
		SELECT habit_id, CAST(check_date AS TEXT) AS check_date, status
		FROM habit_logs
		WHERE habit_id IN (?)
		ORDER BY check_date DESC`, habitIDs)
	if err != nil {
		return nil, apperrors.WrapOp("build", "habit_logs query", "", err)
	}

	entries := []models.LogEntry{}
	if err := s.db.SelectContext(ctx, &entries, s.db.Rebind(query), args...); err != nil {
		return nil, apperrors.WrapOp("list", "habit_logs", "", err)
	}
	return entries, nil
}

func (s *SQLStore) RepairWithFreeze(ctx context.Context, userID string, entry models.LogEntry) (remaining int, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, apperrors.WrapOp("begin", "repair", entry.HabitID, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	remaining, err = spendFreezes(ctx, tx, userID, constants.RepairCost)
	if err != nil {
		return 0, err
	}

	if err = s.insertLogEntry(ctx, tx, entry); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, apperrors.WrapOp("commit", "repair", entry.HabitID, err)
	}
	return remaining, nil
}
