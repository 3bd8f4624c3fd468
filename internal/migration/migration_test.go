package migration

import (
	"context"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/julianstephens/habitd/migrations"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func setupTestMigrations(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, content := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

func tableExists(t *testing.T, db *sqlx.DB, name string) bool {
	t.Helper()
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	return count == 1
}

func TestGetCurrentVersion(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	runner := NewRunner(db, setupTestMigrations(map[string]string{
		"001_test.sql": "CREATE TABLE test (id INTEGER);",
	}))

	version, err := runner.GetCurrentVersion(ctx)
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0, got %d", version)
	}

	if err := runner.SetVersion(ctx, 5); err != nil {
		t.Fatalf("SetVersion failed: %v", err)
	}

	version, err = runner.GetCurrentVersion(ctx)
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if version != 5 {
		t.Errorf("expected version 5, got %d", version)
	}
}

func TestReadMigrationFiles(t *testing.T) {
	runner := NewRunner(setupTestDB(t), setupTestMigrations(map[string]string{
		"001_init.sql":    "CREATE TABLE test1 (id INTEGER);",
		"002_update.sql":  "ALTER TABLE test1 ADD COLUMN name TEXT;",
		"003_another.sql": "CREATE TABLE test2 (id INTEGER);",
		"README.md":       "not a migration",
	}))

	migrations, err := runner.ReadMigrationFiles()
	if err != nil {
		t.Fatalf("ReadMigrationFiles failed: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}

	want := []struct {
		version int
		name    string
	}{{1, "init"}, {2, "update"}, {3, "another"}}
	for i, w := range want {
		if migrations[i].Version != w.version || migrations[i].Name != w.name {
			t.Errorf("migration %d: expected version %d and name %q, got version %d and name %q",
				i, w.version, w.name, migrations[i].Version, migrations[i].Name)
		}
	}
}

func TestApplyMigrationsFromScratch(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	runner := NewRunner(db, setupTestMigrations(map[string]string{
		"001_init.sql":  `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);`,
		"002_posts.sql": `CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER, content TEXT);`,
	}))

	var lines []string
	count, err := runner.ApplyMigrations(ctx, func(s string) { lines = append(lines, s) })
	if err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 migrations applied, got %d", count)
	}

	version, err := runner.GetCurrentVersion(ctx)
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}

	if !tableExists(t, db, "users") || !tableExists(t, db, "posts") {
		t.Error("expected users and posts tables to exist")
	}
	if len(lines) == 0 || !strings.Contains(lines[len(lines)-1], "Applied 2 migration(s)") {
		t.Errorf("unexpected progress output: %v", lines)
	}
}

func TestApplyMigrationsIncremental(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	fsys := setupTestMigrations(map[string]string{
		"001_init.sql": `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);`,
	})
	runner := NewRunner(db, fsys)

	count, err := runner.ApplyMigrations(ctx, nil)
	if err != nil {
		t.Fatalf("ApplyMigrations (1st) failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 migration applied, got %d", count)
	}

	fsys["002_posts.sql"] = &fstest.MapFile{Data: []byte(`CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER);`)}

	count, err = runner.ApplyMigrations(ctx, nil)
	if err != nil {
		t.Fatalf("ApplyMigrations (2nd) failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 more migration applied, got %d", count)
	}

	version, err := runner.GetCurrentVersion(ctx)
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}
}

func TestApplyMigrationsNoOp(t *testing.T) {
	ctx := context.Background()
	runner := NewRunner(setupTestDB(t), setupTestMigrations(map[string]string{
		"001_init.sql": `CREATE TABLE users (id INTEGER PRIMARY KEY);`,
	}))

	if _, err := runner.ApplyMigrations(ctx, nil); err != nil {
		t.Fatalf("ApplyMigrations (1st) failed: %v", err)
	}

	count, err := runner.ApplyMigrations(ctx, nil)
	if err != nil {
		t.Fatalf("ApplyMigrations (2nd) failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 migrations applied on second run, got %d", count)
	}
}

func TestMigrationRollbackOnError(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	runner := NewRunner(db, setupTestMigrations(map[string]string{
		"001_init.sql": `
			CREATE TABLE users (id INTEGER PRIMARY KEY);
			THIS IS INVALID SQL;
		`,
	}))

	if _, err := runner.ApplyMigrations(ctx, nil); err == nil {
		t.Fatal("ApplyMigrations should have failed with invalid SQL")
	}

	version, err := runner.GetCurrentVersion(ctx)
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0 after failed migration, got %d", version)
	}
	if tableExists(t, db, "users") {
		t.Error("table should not exist after failed migration")
	}
}

func TestValidateVersionNewerDatabase(t *testing.T) {
	ctx := context.Background()
	runner := NewRunner(setupTestDB(t), setupTestMigrations(map[string]string{
		"001_init.sql": `CREATE TABLE users (id INTEGER PRIMARY KEY);`,
	}))

	if err := runner.SetVersion(ctx, 10); err != nil {
		t.Fatalf("SetVersion failed: %v", err)
	}

	if err := runner.ValidateVersion(ctx); err == nil {
		t.Fatal("ValidateVersion should have failed with newer database version")
	}
	if _, err := runner.ApplyMigrations(ctx, nil); err == nil {
		t.Fatal("ApplyMigrations should have failed with newer database version")
	}
}

func TestGetLatestVersion(t *testing.T) {
	runner := NewRunner(setupTestDB(t), setupTestMigrations(map[string]string{
		"001_init.sql":   `CREATE TABLE users (id INTEGER);`,
		"003_posts.sql":  `CREATE TABLE posts (id INTEGER);`,
		"002_update.sql": `ALTER TABLE users ADD COLUMN name TEXT;`,
	}))

	latest, err := runner.GetLatestVersion()
	if err != nil {
		t.Fatalf("GetLatestVersion failed: %v", err)
	}
	if latest != 3 {
		t.Errorf("expected latest version 3, got %d", latest)
	}
}

func TestReadMigrationFilesRejectsBadNames(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{"no underscore", map[string]string{"001init.sql": "SELECT 1;"}, "invalid migration filename format"},
		{"version zero", map[string]string{"000_init.sql": "SELECT 1;"}, "version must be at least 1"},
		{"non-numeric", map[string]string{"abc_init.sql": "SELECT 1;"}, "invalid version number"},
		{"duplicate version", map[string]string{"001_init.sql": "SELECT 1;", "001_other.sql": "SELECT 1;"}, "duplicate migration version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := NewRunner(setupTestDB(t), setupTestMigrations(tt.files))
			_, err := runner.ReadMigrationFiles()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ReadMigrationFiles() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEmbeddedSQLiteSchema(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	sub, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		t.Fatalf("fs.Sub failed: %v", err)
	}
	runner := NewRunner(db, sub)

	if _, err := runner.ApplyMigrations(ctx, nil); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}
	for _, table := range []string{"users", "habits", "habit_logs"} {
		if !tableExists(t, db, table) {
			t.Errorf("expected table %s to exist", table)
		}
	}

	if _, err := db.Exec(`INSERT INTO users (id, email) VALUES ('u1', 'a@example.com')`); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := db.Exec(`UPDATE users SET streak_freezes = -1 WHERE id = 'u1'`); err == nil {
		t.Error("negative streak_freezes should violate the CHECK constraint")
	}
}

func TestSetVersionRebindsForPostgres(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	runner := NewRunner(db, setupTestMigrations(nil))

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_version")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schema_version")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_version (version) VALUES ($1)")).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := runner.SetVersion(context.Background(), 3); err != nil {
		t.Fatalf("SetVersion failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
