// Package habits implements the habit operations behind the HTTP API:
// listing with streaks, creation, daily check-in, the freeze ledger, and
// the repair of yesterday with a freeze.
package habits

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/julianstephens/habitd/internal/constants"
	apperrors "github.com/julianstephens/habitd/internal/errors"
	"github.com/julianstephens/habitd/internal/logger"
	"github.com/julianstephens/habitd/internal/metrics"
	"github.com/julianstephens/habitd/internal/models"
	"github.com/julianstephens/habitd/internal/storage"
	"github.com/julianstephens/habitd/internal/streak"
	"github.com/julianstephens/habitd/internal/utils"
)

// Store is the subset of storage.Provider the service depends on.
type Store interface {
	storage.UserStore
	storage.HabitStore
	storage.LogStore
}

// RepairResult is returned by a successful repair.
type RepairResult struct {
	FreezesRemaining int
	Message          string
}

type Service struct {
	store Store
	loc   *time.Location
	now   func() time.Time
}

// New returns a service that resolves "today" in loc. A nil loc means UTC.
func New(store Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, loc: loc, now: time.Now}
}

// WithClock replaces the time source. Tests use it to pin today.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Today returns the current calendar day in the reference timezone.
func (s *Service) Today() string {
	return utils.DayIn(s.now(), s.loc)
}

func (s *Service) Yesterday() string {
	day, _ := utils.PreviousDay(s.Today())
	return day
}

// ListHabits returns the caller's active habits, newest first, each with
// its streak state as of today.
func (s *Service) ListHabits(ctx context.Context, userID string) ([]models.HabitView, error) {
	habits, err := s.store.ListHabits(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]models.HabitView, 0, len(habits))
	if len(habits) == 0 {
		return views, nil
	}

	ids := make([]string, len(habits))
	for i, h := range habits {
		ids[i] = h.ID
	}

	logs, err := s.store.GetLogsForHabits(ctx, ids)
	if err != nil {
		return nil, err
	}
	byHabit := streak.GroupByHabit(logs)

	today := s.Today()
	for _, h := range habits {
		views = append(views, models.HabitView{
			Habit:       h,
			StreakState: streak.Compute(byHabit[h.ID], today),
		})
	}
	return views, nil
}

// CreateHabit stores a new habit for userID. The title is trimmed and must
// hold between 1 and 100 characters.
func (s *Service) CreateHabit(ctx context.Context, userID, title string) (models.HabitView, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.HabitView{}, apperrors.New(apperrors.ErrInvalidInput, constants.MsgTitleRequired)
	}
	if utf8.RuneCountInString(title) > constants.MaxHabitTitleLength {
		return models.HabitView{}, apperrors.New(apperrors.ErrInvalidInput, constants.MsgTitleTooLong)
	}

	habit := models.Habit{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AddHabit(ctx, habit); err != nil {
		return models.HabitView{}, err
	}

	metrics.RecordHabitCreated()
	logger.Debug("habit created", "user", userID, "habit", habit.ID)
	return models.HabitView{Habit: habit}, nil
}

// CheckIn marks today completed. Checking in twice on the same day
// succeeds without writing a second entry.
func (s *Service) CheckIn(ctx context.Context, userID, habitID string) error {
	if _, err := s.ownedHabit(ctx, userID, habitID); err != nil {
		return err
	}

	entry := models.LogEntry{HabitID: habitID, Day: s.Today(), Status: models.LogStatusCompleted}
	err := s.store.AddLogEntry(ctx, entry)
	switch {
	case err == nil:
		metrics.RecordCheckIn(false)
		return nil
	case errors.Is(err, storage.ErrDuplicateEntry):
		metrics.RecordCheckIn(true)
		return nil
	default:
		return err
	}
}

// RepairYesterday spends one freeze to mark yesterday as frozen. The spend
// and the entry are committed together or not at all.
func (s *Service) RepairYesterday(ctx context.Context, userID, habitID string) (RepairResult, error) {
	if _, err := s.ownedHabit(ctx, userID, habitID); err != nil {
		metrics.RecordRepair(metrics.RepairNotAuthorized)
		return RepairResult{}, err
	}

	balance, err := s.FreezeBalance(ctx, userID)
	if err != nil {
		metrics.RecordRepair(metrics.RepairError)
		return RepairResult{}, err
	}
	if balance < constants.RepairCost {
		metrics.RecordRepair(metrics.RepairInsufficient)
		return RepairResult{}, apperrors.New(apperrors.ErrInsufficientBalance, constants.MsgNotEnoughFreezes)
	}

	entry := models.LogEntry{HabitID: habitID, Day: s.Yesterday(), Status: models.LogStatusFrozen}
	remaining, err := s.store.RepairWithFreeze(ctx, userID, entry)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrDuplicateEntry):
		metrics.RecordRepair(metrics.RepairAlreadyLogged)
		return RepairResult{}, apperrors.Wrap(apperrors.ErrAlreadyLogged, constants.MsgAlreadyLogged, err)
	case errors.Is(err, apperrors.ErrInsufficientBalance), errors.Is(err, storage.ErrNotFound):
		// Another request spent the last freeze after the balance check.
		metrics.RecordRepair(metrics.RepairInsufficient)
		return RepairResult{}, apperrors.Wrap(apperrors.ErrInsufficientBalance, constants.MsgNotEnoughFreezes, err)
	default:
		metrics.RecordRepair(metrics.RepairError)
		return RepairResult{}, err
	}

	metrics.RecordRepair(metrics.RepairSuccess)
	logger.Info("streak repaired", "user", userID, "habit", habitID, "day", entry.Day, "freezes_remaining", remaining)
	return RepairResult{FreezesRemaining: remaining, Message: constants.MsgStreakFrozen}, nil
}

// FreezeBalance returns 0 for users without a row.
func (s *Service) FreezeBalance(ctx context.Context, userID string) (int, error) {
	balance, err := s.store.GetFreezeBalance(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	return balance, err
}

// EarnFreeze grants one freeze. There is no cap and no deduplication.
func (s *Service) EarnFreeze(ctx context.Context, userID string) (int, error) {
	balance, err := s.store.EarnFreeze(ctx, userID)
	if err != nil {
		return 0, err
	}
	metrics.RecordFreezeEarned()
	return balance, nil
}

// SyncUser makes sure a user row exists for an authenticated caller.
func (s *Service) SyncUser(ctx context.Context, userID, email string) error {
	if email == "" {
		email = constants.DefaultSyncedUserEmail
	}
	return s.store.EnsureUser(ctx, models.User{ID: userID, Email: email})
}

// ownedHabit hides whether a foreign habit exists: both cases are
// reported as not authorized.
func (s *Service) ownedHabit(ctx context.Context, userID, habitID string) (models.Habit, error) {
	habit, err := s.store.GetHabit(ctx, habitID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Habit{}, apperrors.New(apperrors.ErrNotAuthorized, constants.MsgNotAuthorized)
		}
		return models.Habit{}, err
	}
	if !habit.OwnedBy(userID) {
		return models.Habit{}, apperrors.New(apperrors.ErrNotAuthorized, constants.MsgNotAuthorized)
	}
	return habit, nil
}
