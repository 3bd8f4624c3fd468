package system

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jmoiron/sqlx"

	"github.com/julianstephens/habitd/internal/cli"
	"github.com/julianstephens/habitd/internal/constants"
)

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
)

type DoctorCmd struct{}

type check struct {
	name    string
	needsDB bool
	run     func(context.Context, *cli.Context) error
}

var checks = []check{
	{"Database reachable", false, checkDBReachable},
	{"Schema version", true, checkSchemaVersion},
	{"Log integrity", true, checkLogIntegrity},
	{"Clock/timezone", false, checkClockTimezone},
	{"Auth configured", false, checkAuthConfigured},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	runCtx := context.Background()
	defer ctx.Store.Close()

	ctx.Println("Running diagnostics...")
	ctx.Println()

	hasError := false
	dbReachable := false

	for _, c := range checks {
		if c.needsDB && !dbReachable {
			ctx.Println(skipStyle.Render(fmt.Sprintf("⊘ %s: SKIPPED (database not reachable)", c.name)))
			continue
		}

		if err := c.run(runCtx, ctx); err != nil {
			ctx.Println(failStyle.Render(fmt.Sprintf("❌ %s: FAIL", c.name)))
			ctx.Println(hintStyle.Render(fmt.Sprintf("   Error: %v", err)))
			hasError = true
			continue
		}

		ctx.Println(passStyle.Render(fmt.Sprintf("✓ %s: OK", c.name)))
		if c.name == "Database reachable" {
			dbReachable = true
		}
	}

	ctx.Println()
	if hasError {
		ctx.Println("Diagnostics completed with errors.")
		return errors.New("one or more health checks failed")
	}

	ctx.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(runCtx context.Context, ctx *cli.Context) error {
	if err := ctx.Store.Load(runCtx); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	if err := ctx.Store.Ping(runCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

func checkSchemaVersion(runCtx context.Context, ctx *cli.Context) error {
	current, latest, err := ctx.Store.SchemaVersion(runCtx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d. Run 'habitd migrate'", current, latest)
	}
	return nil
}

// checkLogIntegrity looks for rows the schema constraints should have
// prevented: orphaned entries, unknown statuses, negative balances.
func checkLogIntegrity(runCtx context.Context, ctx *cli.Context) error {
	dbStore, ok := ctx.Store.(interface{ DB() *sqlx.DB })
	if !ok || dbStore.DB() == nil {
		return errors.New("database connection is nil")
	}
	db := dbStore.DB()

	queries := []struct {
		what  string
		query string
		args  []interface{}
	}{
		{
			what: "orphaned habit log entries",
			query: `SELECT COUNT(*) FROM habit_logs l
				LEFT JOIN habits h ON l.habit_id = h.id
				WHERE h.id IS NULL`,
		},
		{
			what:  "habit log entries with an unknown status",
			query: `SELECT COUNT(*) FROM habit_logs WHERE status NOT IN (?, ?)`,
			args:  []interface{}{constants.LogStatusCompleted, constants.LogStatusFrozen},
		},
		{
			what:  "users with a negative freeze balance",
			query: `SELECT COUNT(*) FROM users WHERE streak_freezes < 0`,
		},
	}

	for _, q := range queries {
		var count int
		if err := db.GetContext(runCtx, &count, db.Rebind(q.query), q.args...); err != nil {
			return fmt.Errorf("failed to check %s: %w", q.what, err)
		}
		if count > 0 {
			return fmt.Errorf("found %d %s", count, q.what)
		}
	}
	return nil
}

func checkClockTimezone(_ context.Context, ctx *cli.Context) error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	if _, err := ctx.Config.Location(); err != nil {
		return err
	}
	return nil
}

func checkAuthConfigured(_ context.Context, ctx *cli.Context) error {
	_, err := cli.LoadVerifier(ctx.Config.Auth)
	return err
}
