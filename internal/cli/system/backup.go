package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/habitd/internal/backup"
	"github.com/julianstephens/habitd/internal/cli"
)

var errBackupSQLiteOnly = errors.New("backups are only supported for SQLite storage; use pg_dump for PostgreSQL")

func backupManager(ctx *cli.Context) (*backup.Manager, error) {
	if ctx.Store.Backend() != "sqlite" {
		return nil, errBackupSQLiteOnly
	}
	return backup.NewManager(ctx.Store.Location()), nil
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	path, err := mgr.Create(context.Background())
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	ctx.Printf("✓ Backup created: %s\n", filepath.Base(path))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	backups, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		ctx.Println("No backups found.")
		ctx.Printf("Backups are stored in: %s\n", mgr.Dir())
		return nil
	}

	ctx.Printf("Available backups (%d total, keeping most recent %d):\n\n", len(backups), backup.MaxBackups)
	for _, b := range backups {
		ctx.Printf("  %s  %s  (%.1f KB)\n", b.Timestamp.Format("2006-01-02 15:04:05"), filepath.Base(b.Path), float64(b.Size)/1024.0)
	}
	ctx.Printf("\nBackup directory: %s\n", mgr.Dir())
	return nil
}

type BackupRestoreCmd struct {
	BackupFile string `arg:"" help:"Path or filename of the backup to restore."`
	Yes        bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}

	path, err := resolveBackupPath(c.BackupFile, mgr.Dir())
	if err != nil {
		return err
	}

	if !c.Yes {
		ok, err := ctx.Ask(
			"Replace the current database with this backup?",
			fmt.Sprintf("Restore from %s. Stop any running habitd server first. The current database is backed up before restoring.", path),
		)
		if err != nil {
			return err
		}
		if !ok {
			ctx.Println("Restore cancelled.")
			return nil
		}
	}

	if err := ctx.Store.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	previous, err := mgr.Restore(context.Background(), path)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	if previous != "" {
		ctx.Printf("Created backup of current database: %s\n", filepath.Base(previous))
	}
	ctx.Println("✓ Database restored successfully!")
	return nil
}

// resolveBackupPath accepts an absolute path, a path relative to the
// working directory, or a bare filename inside the backup directory.
func resolveBackupPath(name, dir string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("backup file not found: %s", name)
		}
		return name, nil
	}
	if _, err := os.Stat(name); err == nil {
		abs, err := filepath.Abs(name)
		if err != nil {
			return "", fmt.Errorf("failed to resolve backup path: %w", err)
		}
		return abs, nil
	}
	candidate := filepath.Join(dir, name)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", fmt.Errorf("backup file not found: tried current directory and %s", dir)
}
