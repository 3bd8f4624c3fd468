package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/habitd/internal/models"
	"github.com/julianstephens/habitd/internal/storage/sqlite"
)

func seededStore(t *testing.T) (*sqlite.Store, string) {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "habitd.db")

	store := sqlite.NewStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.EnsureUser(ctx, models.User{ID: "user_1", Email: "a@example.com"}); err != nil {
		t.Fatalf("EnsureUser() failed: %v", err)
	}
	addHabit(t, store, "habit_1")
	return store, dbPath
}

func addHabit(t *testing.T, store *sqlite.Store, id string) {
	t.Helper()
	habit := models.Habit{ID: id, UserID: "user_1", Title: "Stretch", CreatedAt: time.Now()}
	if err := store.AddHabit(context.Background(), habit); err != nil {
		t.Fatalf("AddHabit(%s) failed: %v", id, err)
	}
}

func habitCount(t *testing.T, dbPath string) int {
	t.Helper()
	store := sqlite.NewStore(dbPath)
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load(%s) failed: %v", dbPath, err)
	}
	defer store.Close()
	habits, err := store.ListHabits(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("ListHabits() failed: %v", err)
	}
	return len(habits)
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestCreate(t *testing.T) {
	_, dbPath := seededStore(t)

	mgr := NewManager(dbPath)
	mgr.now = fixedClock(time.Date(2026, 10, 14, 8, 30, 0, 0, time.UTC))

	path, err := mgr.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if want := filepath.Join(filepath.Dir(dbPath), DirName, "habitd-20261014-083000.db"); path != want {
		t.Errorf("Create() = %q, want %q", path, want)
	}
	if n := habitCount(t, path); n != 1 {
		t.Errorf("habits in backup = %d, want 1", n)
	}
}

func TestCreateCollision(t *testing.T) {
	_, dbPath := seededStore(t)

	mgr := NewManager(dbPath)
	mgr.now = fixedClock(time.Date(2026, 10, 14, 8, 30, 0, 0, time.UTC))

	first, err := mgr.Create(context.Background())
	if err != nil {
		t.Fatalf("first Create() failed: %v", err)
	}
	second, err := mgr.Create(context.Background())
	if err != nil {
		t.Fatalf("second Create() failed: %v", err)
	}
	if first == second {
		t.Fatalf("both backups written to %s", first)
	}
	if filepath.Base(second) != "habitd-20261014-083000-1.db" {
		t.Errorf("second backup = %s", filepath.Base(second))
	}

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(backups) != 2 {
		t.Errorf("List() returned %d backups, want 2", len(backups))
	}
}

func TestCreateMissingDatabase(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "absent.db"))
	if _, err := mgr.Create(context.Background()); err == nil {
		t.Error("Create() should fail when the database does not exist")
	}
}

func TestListOrderingAndFiltering(t *testing.T) {
	_, dbPath := seededStore(t)
	mgr := NewManager(dbPath)

	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		mgr.now = fixedClock(base.Add(time.Duration(i) * time.Hour))
		if _, err := mgr.Create(context.Background()); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
	}
	// Unrelated files are ignored.
	for _, name := range []string{"notes.txt", "habitd-garbage.db", "other-20261001-120000.db"} {
		if err := os.WriteFile(filepath.Join(mgr.Dir(), name), []byte("x"), 0600); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(backups) != 3 {
		t.Fatalf("List() returned %d backups, want 3", len(backups))
	}
	for i := 1; i < len(backups); i++ {
		if !backups[i-1].Timestamp.After(backups[i].Timestamp) {
			t.Errorf("backups not sorted newest first: %v before %v", backups[i-1].Timestamp, backups[i].Timestamp)
		}
	}
	if backups[0].Size == 0 {
		t.Error("backup size should be recorded")
	}
}

func TestListMissingDir(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "habitd.db"))
	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if backups == nil || len(backups) != 0 {
		t.Errorf("List() = %v, want empty slice", backups)
	}
}

func TestRotation(t *testing.T) {
	_, dbPath := seededStore(t)
	mgr := NewManager(dbPath)

	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < MaxBackups+3; i++ {
		mgr.now = fixedClock(base.AddDate(0, 0, i))
		if _, err := mgr.Create(context.Background()); err != nil {
			t.Fatalf("Create() #%d failed: %v", i, err)
		}
	}

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(backups) != MaxBackups {
		t.Fatalf("kept %d backups, want %d", len(backups), MaxBackups)
	}
	oldestKept := base.AddDate(0, 0, 3)
	if !backups[len(backups)-1].Timestamp.Equal(oldestKept) {
		t.Errorf("oldest kept = %v, want %v", backups[len(backups)-1].Timestamp, oldestKept)
	}
}

func TestRestore(t *testing.T) {
	store, dbPath := seededStore(t)
	mgr := NewManager(dbPath)
	mgr.now = fixedClock(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))

	snapshot, err := mgr.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	addHabit(t, store, "habit_2")
	if err := store.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if n := habitCount(t, dbPath); n != 2 {
		t.Fatalf("habits before restore = %d, want 2", n)
	}

	mgr.now = fixedClock(time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC))
	previous, err := mgr.Restore(context.Background(), snapshot)
	if err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}

	if n := habitCount(t, dbPath); n != 1 {
		t.Errorf("habits after restore = %d, want 1", n)
	}
	if previous == "" {
		t.Fatal("Restore() should snapshot the current database first")
	}
	if n := habitCount(t, previous); n != 2 {
		t.Errorf("habits in pre-restore snapshot = %d, want 2", n)
	}
}

func TestRestoreRejectsInvalidFile(t *testing.T) {
	_, dbPath := seededStore(t)
	mgr := NewManager(dbPath)

	bogus := filepath.Join(t.TempDir(), "habitd-20261014-090000.db")
	if err := os.WriteFile(bogus, []byte("this is not a database file, just some text padding it out"), 0600); err != nil {
		t.Fatalf("failed to write bogus file: %v", err)
	}

	if _, err := mgr.Restore(context.Background(), bogus); err == nil {
		t.Error("Restore() should reject a non-SQLite file")
	}
	if _, err := mgr.Restore(context.Background(), filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("Restore() should fail for a missing file")
	}
	if n := habitCount(t, dbPath); n != 1 {
		t.Errorf("database changed after failed restore: %d habits", n)
	}
}

func TestParseName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"habitd-20261014-083000.db", true},
		{"habitd-20261014-083000-12.db", true},
		{"habitd-20261014-0830.db", false},
		{"habitd-20261014-083000x1.db", false},
		{"daylit-20261014-083000.db", false},
		{"habitd-20261014-083000.sqlite", false},
	}

	for _, tt := range tests {
		if _, ok := parseName(tt.name); ok != tt.ok {
			t.Errorf("parseName(%q) ok = %v, want %v", tt.name, ok, tt.ok)
		}
	}
}
