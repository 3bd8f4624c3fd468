// Package server exposes the habit service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/julianstephens/habitd/internal/auth"
	"github.com/julianstephens/habitd/internal/constants"
	"github.com/julianstephens/habitd/internal/habits"
	"github.com/julianstephens/habitd/internal/logger"
	"github.com/julianstephens/habitd/internal/metrics"
	"github.com/julianstephens/habitd/internal/models"
)

const maxBodyBytes = 1 << 20

// HabitService is implemented by *habits.Service.
type HabitService interface {
	ListHabits(ctx context.Context, userID string) ([]models.HabitView, error)
	CreateHabit(ctx context.Context, userID, title string) (models.HabitView, error)
	CheckIn(ctx context.Context, userID, habitID string) error
	RepairYesterday(ctx context.Context, userID, habitID string) (habits.RepairResult, error)
	FreezeBalance(ctx context.Context, userID string) (int, error)
	EarnFreeze(ctx context.Context, userID string) (int, error)
	SyncUser(ctx context.Context, userID, email string) error
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

func (c Config) withDefaults() Config {
	if c.ListenAddr == "" {
		c.ListenAddr = constants.DefaultListenAddr
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = constants.DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = constants.DefaultWriteTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = constants.DefaultShutdownTimeout
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = constants.DefaultAllowedOrigins
	}
	return c
}

type Server struct {
	cfg      Config
	habits   HabitService
	verifier auth.Verifier
	health   Pinger
	handler  http.Handler
}

func New(cfg Config, svc HabitService, verifier auth.Verifier, health Pinger) *Server {
	s := &Server{
		cfg:      cfg.withDefaults(),
		habits:   svc,
		verifier: verifier,
		health:   health,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(metrics.InstrumentHandler)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.Handle("/habits", s.protected(s.handleListHabits)).Methods(http.MethodGet)
	r.Handle("/habits", s.protected(s.handleCreateHabit)).Methods(http.MethodPost)
	r.Handle("/habits/{id}/check", s.protected(s.handleCheckIn)).Methods(http.MethodPost)
	r.Handle("/habits/{id}/freeze", s.protected(s.handleRepair)).Methods(http.MethodPost)
	r.Handle("/user/stats", s.protected(s.handleStats)).Methods(http.MethodGet)
	r.Handle("/user/watch-ad", s.protected(s.handleWatchAd)).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
	})

	// CORS sits outside the router so preflight requests never reach
	// method matching or authentication.
	return accessLog(cors(s.cfg.AllowedOrigins)(r))
}

func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return s.authenticate(s.syncUser(h))
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
