package system

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/habitd/internal/backup"
	"github.com/julianstephens/habitd/internal/cli"
)

type InitCmd struct {
	Force    bool `help:"Force reset by deleting the existing SQLite database before initialization."`
	Yes      bool `short:"y" help:"Skip the confirmation prompt for --force."`
	NoBackup bool `help:"Do not snapshot the database before --force deletes it."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		done, err := c.reset(ctx)
		if err != nil || done {
			return err
		}
	}

	if err := ctx.Store.Init(context.Background()); err != nil {
		return err
	}
	ctx.Printf("Initialized habitd storage at: %s\n", ctx.Store.Location())
	return nil
}

// reset deletes the sqlite file. done is true when the user backed out.
func (c *InitCmd) reset(ctx *cli.Context) (done bool, err error) {
	if ctx.Store.Backend() != "sqlite" {
		return false, errors.New("--force is only supported for SQLite storage")
	}

	dbPath := ctx.Store.Location()
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to access existing database: %w", err)
	}

	if !c.Yes {
		ok, err := ctx.Ask("Delete existing database?", fmt.Sprintf("All habits, logs and freezes in %s will be lost.", dbPath))
		if err != nil {
			return false, err
		}
		if !ok {
			ctx.Println("Aborted. Existing database kept.")
			return true, nil
		}
	}

	// Close first to release the file lock.
	if err := ctx.Store.Close(); err != nil {
		return false, fmt.Errorf("failed to close existing database: %w", err)
	}
	if !c.NoBackup {
		path, err := backup.NewManager(dbPath).Create(context.Background())
		if err != nil {
			return false, fmt.Errorf("failed to back up existing database: %w", err)
		}
		ctx.Printf("Backed up existing database to: %s\n", path)
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return false, fmt.Errorf("failed to delete existing database: %w", err)
		}
	}
	ctx.Printf("Deleted existing database at: %s\n", dbPath)
	return false, nil
}
