package system

import (
	"context"
	"fmt"

	"github.com/julianstephens/habitd/internal/cli"
)

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	runCtx := context.Background()

	if err := ctx.Store.Load(runCtx); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	defer ctx.Store.Close()

	count, err := ctx.Store.Migrate(runCtx, func(msg string) {
		ctx.Println(msg)
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if count == 0 {
		ctx.Println("No migrations to apply. Database is up to date.")
	} else {
		ctx.Printf("\nSuccessfully applied %d migration(s).\n", count)
	}
	return nil
}
