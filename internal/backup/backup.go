// Package backup snapshots and restores the SQLite database file.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/julianstephens/habitd/internal/constants"
	"github.com/julianstephens/habitd/internal/logger"
)

const (
	// MaxBackups is how many snapshots rotation keeps.
	MaxBackups = 14
	DirName    = "backups"

	filePrefix  = constants.AppName + "-"
	fileSuffix  = ".db"
	stampLayout = "20060102-150405"
)

type Info struct {
	Path      string
	Timestamp time.Time
	Size      int64
}

// Manager writes snapshots of dbPath into a backups directory next to it.
type Manager struct {
	dbPath string
	dir    string
	now    func() time.Time
}

func NewManager(dbPath string) *Manager {
	return &Manager{
		dbPath: dbPath,
		dir:    filepath.Join(filepath.Dir(dbPath), DirName),
		now:    time.Now,
	}
}

func (m *Manager) Dir() string {
	return m.dir
}

// Create snapshots the database with VACUUM INTO and rotates old snapshots.
func (m *Manager) Create(ctx context.Context) (string, error) {
	path, err := m.create(ctx)
	if err != nil {
		return "", err
	}
	if err := m.rotate(); err != nil {
		logger.Warn("Failed to rotate old backups", "error", err)
	}
	return path, nil
}

func (m *Manager) create(ctx context.Context) (string, error) {
	if _, err := os.Stat(m.dbPath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("database does not exist: %s", m.dbPath)
		}
		return "", err
	}
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	dest, err := m.nextPath()
	if err != nil {
		return "", err
	}

	src, err := openVerified(ctx, m.dbPath+"?mode=ro")
	if err != nil {
		return "", fmt.Errorf("source database appears to be corrupted: %w", err)
	}
	defer src.Close()

	if _, err := src.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		logger.Warn("VACUUM INTO failed, copying file instead", "error", err)
		src.Close()
		if err := copyFile(m.dbPath, dest); err != nil {
			return "", fmt.Errorf("failed to backup database: %w", err)
		}
	}
	logger.Info("Backup created", "path", dest)
	return dest, nil
}

// nextPath picks a timestamped name, adding a counter on collision.
func (m *Manager) nextPath() (string, error) {
	stamp := m.now().UTC().Format(stampLayout)
	path := filepath.Join(m.dir, filePrefix+stamp+fileSuffix)
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
		if n > 100 {
			return "", fmt.Errorf("failed to generate unique backup filename")
		}
		path = filepath.Join(m.dir, fmt.Sprintf("%s%s-%d%s", filePrefix, stamp, n, fileSuffix))
	}
}

// List returns the snapshots newest first. Files that don't match the
// naming scheme are ignored.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []Info{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ts, ok := parseName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Path:      filepath.Join(m.dir, entry.Name()),
			Timestamp: ts,
			Size:      info.Size(),
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].Timestamp.Equal(backups[j].Timestamp) {
			return backups[i].Path > backups[j].Path
		}
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

func parseName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	if len(stamp) > len(stampLayout) {
		// Drop the collision counter.
		if stamp[len(stampLayout)] != '-' {
			return time.Time{}, false
		}
		stamp = stamp[:len(stampLayout)]
	}
	ts, err := time.Parse(stampLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func (m *Manager) rotate() error {
	backups, err := m.List()
	if err != nil {
		return err
	}
	for i := MaxBackups; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i].Path, err)
		}
	}
	return nil
}

// Restore replaces the database with the snapshot at path. The current
// database is snapshotted first. The caller must close its handle.
func (m *Manager) Restore(ctx context.Context, path string) (previous string, err error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("backup file does not exist: %s", path)
	}
	db, err := openVerified(ctx, path)
	if err != nil {
		return "", fmt.Errorf("backup file is corrupted or invalid: %w", err)
	}
	db.Close()

	if _, err := os.Stat(m.dbPath); err == nil {
		// No rotation here: it could delete the snapshot being restored.
		if previous, err = m.create(ctx); err != nil {
			return "", fmt.Errorf("failed to backup current database before restore: %w", err)
		}
	}

	tmp := m.dbPath + ".restore.tmp"
	if err := copyFile(path, tmp); err != nil {
		return previous, fmt.Errorf("failed to copy backup file: %w", err)
	}
	if err := os.Rename(tmp, m.dbPath); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			logger.Warn("Failed to remove temporary file", "path", tmp, "error", rmErr)
		}
		return previous, fmt.Errorf("failed to restore database: %w", err)
	}
	// Stale WAL files would be replayed over the restored snapshot.
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(m.dbPath + suffix)
	}
	return previous, nil
}

func openVerified(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM sqlite_master"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.ReadFrom(in); err != nil {
		return err
	}
	return out.Sync()
}
