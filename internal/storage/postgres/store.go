package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	pq "github.com/lib/pq"

	"github.com/julianstephens/habitd/internal/constants"
	"github.com/julianstephens/habitd/internal/logger"
	"github.com/julianstephens/habitd/internal/storage"
	"github.com/julianstephens/habitd/migrations"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

var _ storage.Provider = (*Store)(nil)

type Store struct {
	*storage.SQLStore
	connStr string
}

func New(connStr string) *Store {
	return &Store{connStr: withSearchPath(connStr)}
}

// newWithDB wraps an already-open handle. Used by tests.
func newWithDB(db *sqlx.DB) (*Store, error) {
	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		return nil, err
	}
	return &Store{SQLStore: storage.NewSQLStore(db, subFS, IsUniqueViolation), connStr: "postgresql"}, nil
}

func (s *Store) Init(ctx context.Context) error {
	if s.SQLStore == nil {
		db, err := s.connect(ctx)
		if err != nil {
			return err
		}
		if err := s.attach(db); err != nil {
			return err
		}
	}

	if _, err := s.DB().ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+constants.AppName); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
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

	db, err := s.connect(ctx)
	if err != nil {
		return err
	}
	if err := s.attach(db); err != nil {
		return err
	}
	if err := s.ValidateSchema(ctx); err != nil {
		s.Close()
		return err
	}
	return nil
}

func (s *Store) connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", s.connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasSSLMode(s.connStr) {
			return nil, fmt.Errorf("failed to connect to database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func (s *Store) attach(db *sqlx.DB) error {
	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to access postgres migrations: %w", err)
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
	return "postgres"
}

func (s *Store) Location() string {
	return redact(s.connStr)
}

func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
