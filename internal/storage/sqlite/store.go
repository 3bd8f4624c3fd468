package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/julianstephens/habitd/internal/logger"
	"github.com/julianstephens/habitd/internal/storage"
	"github.com/julianstephens/habitd/migrations"
)

// Writers serialize on a single connection; busy_timeout covers other
// processes holding the file lock.
const pragmas = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

var _ storage.Provider = (*Store)(nil)

type Store struct {
	*storage.SQLStore
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Init(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := s.open(ctx); err != nil {
		return err
	}

	if _, err := s.Migrate(ctx, func(msg string) { logger.Info(msg) }); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) error {
	if s.SQLStore != nil {
		return nil
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run 'habitd init' first")
	}

	if err := s.open(ctx); err != nil {
		return err
	}
	if err := s.ValidateSchema(ctx); err != nil {
		s.Close()
		return err
	}
	return nil
}

func (s *Store) open(ctx context.Context) error {
	if s.SQLStore != nil {
		return nil
	}

	dsn := s.path + "?" + pragmas
	if strings.Contains(s.path, "?") {
		dsn = s.path + "&" + pragmas
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to access sqlite migrations: %w", err)
	}

	s.SQLStore = storage.NewSQLStore(db, subFS, IsUniqueViolation)
	return nil
}

// Close releases the handle so a later Init or Load reopens it.
func (s *Store) Close() error {
	if s.SQLStore == nil {
		return nil
	}
	err := s.SQLStore.Close()
	s.SQLStore = nil
	return err
}

func (s *Store) Backend() string {
	return "sqlite"
}

func (s *Store) Location() string {
	return s.path
}

// IsUniqueViolation reports whether err is a sqlite UNIQUE or PRIMARY KEY
// constraint failure.
func IsUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}
