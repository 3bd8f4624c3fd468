package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/habitd/internal/cli"
	"github.com/julianstephens/habitd/internal/cli/system"
	"github.com/julianstephens/habitd/internal/config"
	"github.com/julianstephens/habitd/internal/constants"
	apperrors "github.com/julianstephens/habitd/internal/errors"
	"github.com/julianstephens/habitd/internal/logger"
)

var CLI struct {
	Version  kong.VersionFlag
	Config   string `help:"YAML config file." type:"string" default:"~/.config/habitd/config.yaml"`
	EnvFile  string `name:"env-file" help:"Dotenv file loaded before HABITD_* variables are read." default:".env"`
	Database string `help:"SQLite path, PostgreSQL connection string, or 'keyring'. PostgreSQL credentials must NOT be embedded; use .pgpass, PGPASSWORD or the OS keyring."`
	Listen   string `help:"HTTP listen address." placeholder:"ADDR"`
	Timezone string `help:"Reference timezone for today and yesterday." placeholder:"TZ"`
	Debug    bool   `help:"Enable debug logging."`

	Serve   system.ServeCmd   `cmd:"" help:"Run the HTTP API." default:"1"`
	Init    system.InitCmd    `cmd:"" help:"Initialize habitd storage."`
	Migrate system.MigrateCmd `cmd:"" help:"Run database migrations."`
	Doctor  system.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	Backup  struct {
		Create  system.BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
		List    system.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore system.BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
	} `cmd:"" help:"Manage SQLite database backups."`
	Keyring struct {
		Set    system.KeyringSetCmd    `cmd:"" help:"Store a credential in the OS keyring."`
		Get    system.KeyringGetCmd    `cmd:"" help:"Show a stored credential, masked."`
		Delete system.KeyringDeleteCmd `cmd:"" help:"Remove a credential from the OS keyring."`
		Status system.KeyringStatusCmd `cmd:"" help:"Check OS keyring availability." default:"1"`
	} `cmd:"" help:"Manage credentials in the OS keyring."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Habit streak tracker with freeze-based streak repair"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	cfg, err := config.Load(config.Options{ConfigFile: CLI.Config, EnvFile: CLI.EnvFile})
	if err != nil {
		apperrors.Fatal(err)
	}
	cfg.Apply(config.Overrides{
		ListenAddr: CLI.Listen,
		Database:   CLI.Database,
		Timezone:   CLI.Timezone,
		Debug:      CLI.Debug,
	})

	command := ctx.Command()
	if err := logger.Init(logger.Config{
		Debug:   cfg.Log.Debug,
		Stderr:  cfg.Log.Stderr || command == "serve",
		DataDir: cfg.DataDir,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	// Keyring commands must work before a valid database is configured.
	appCtx := &cli.Context{Config: cfg, Out: os.Stdout}
	if !strings.HasPrefix(command, "keyring") {
		if err := cfg.Validate(); err != nil {
			apperrors.Fatal(err)
		}
		if appCtx, err = cli.NewContext(cfg); err != nil {
			apperrors.Fatal(err)
		}
	}

	if err := ctx.Run(appCtx); err != nil {
		apperrors.Fatal(err)
	}
}
