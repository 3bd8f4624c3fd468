package system

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/julianstephens/habitd/internal/cli"
	"github.com/julianstephens/habitd/internal/constants"
	"github.com/julianstephens/habitd/internal/habits"
	"github.com/julianstephens/habitd/internal/logger"
	"github.com/julianstephens/habitd/internal/server"
)

type ServeCmd struct{}

func (c *ServeCmd) Run(ctx *cli.Context) error {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(runCtx, ctx, nil)
}

// serve bootstraps the schema and blocks until runCtx is cancelled. A nil
// listener binds the configured address.
func serve(runCtx context.Context, ctx *cli.Context, ln net.Listener) error {
	cfg := ctx.Config

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	verifier, err := cli.LoadVerifier(cfg.Auth)
	if err != nil {
		return err
	}

	if err := ctx.Store.Init(runCtx); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer ctx.Store.Close()

	logger.Info("Storage ready", "backend", ctx.Store.Backend(), "location", ctx.Store.Location())

	svc := habits.New(ctx.Store, loc)
	srv := server.New(server.Config{
		ListenAddr:      cfg.ListenAddr,
		ReadTimeout:     constants.DefaultReadTimeout,
		WriteTimeout:    constants.DefaultWriteTimeout,
		ShutdownTimeout: constants.DefaultShutdownTimeout,
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
	}, svc, verifier, ctx.Store)

	if ln != nil {
		return srv.Serve(runCtx, ln)
	}
	return srv.Run(runCtx)
}
