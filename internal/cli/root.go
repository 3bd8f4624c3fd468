package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitd/internal/auth"
	"github.com/julianstephens/habitd/internal/config"
	"github.com/julianstephens/habitd/internal/keyring"
	"github.com/julianstephens/habitd/internal/storage"
	"github.com/julianstephens/habitd/internal/storage/postgres"
	"github.com/julianstephens/habitd/internal/storage/sqlite"
)

// DatabaseFromKeyring is the database value that defers to the connection
// string stored with `habitd keyring set database`.
const DatabaseFromKeyring = "keyring"

// ErrNoVerifier is returned when neither a token secret nor a public key
// is configured.
var ErrNoVerifier = errors.New("no token verification configured: set auth.secret, auth.public_key_file, or store an auth-secret in the keyring")

type Context struct {
	Config *config.Config
	Store  storage.Provider
	Out    io.Writer

	// Confirm asks a yes/no question. Nil falls back to an interactive prompt.
	Confirm func(title, description string) (bool, error)
}

// NewContext resolves the database and builds an unopened store for it.
func NewContext(cfg *config.Config) (*Context, error) {
	store, err := OpenStore(cfg.Database)
	if err != nil {
		return nil, err
	}
	return &Context{Config: cfg, Store: store, Out: os.Stdout}, nil
}

// OpenStore returns the backend for database: a PostgreSQL store for
// connection strings, otherwise a SQLite file. The keyring sentinel is
// resolved first; a keyring-held string may carry a password.
func OpenStore(database string) (storage.Provider, error) {
	fromKeyring := false
	if database == DatabaseFromKeyring {
		connStr, err := keyring.GetConnectionString()
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return nil, errors.New("database is set to keyring but no connection string is stored. Use 'habitd keyring set database' to store one")
			}
			return nil, err
		}
		database = connStr
		fromKeyring = true
	}

	if postgres.IsConnString(database) || strings.Contains(database, "host=") {
		if _, err := postgres.ValidateConnString(database); err != nil {
			if !(fromKeyring && errors.Is(err, postgres.ErrEmbeddedCredentials)) {
				return nil, err
			}
		}
		return postgres.New(database), nil
	}
	return sqlite.NewStore(database), nil
}

// LoadVerifier builds the token verifier from config, falling back to the
// secret stored in the keyring.
func LoadVerifier(cfg config.AuthConfig) (auth.Verifier, error) {
	opts := auth.Options{Issuer: cfg.Issuer, Audience: cfg.Audience, Leeway: cfg.Leeway}

	switch {
	case cfg.PublicKeyFile != "":
		pem, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read public key: %w", err)
		}
		return auth.NewRSAVerifier(pem, opts)
	case cfg.Secret != "":
		return auth.NewHMACVerifier([]byte(cfg.Secret), opts)
	}

	secret, err := keyring.GetAuthSecret()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) || errors.Is(err, keyring.ErrKeyringUnavailable) {
			return nil, ErrNoVerifier
		}
		return nil, err
	}
	return auth.NewHMACVerifier([]byte(secret), opts)
}

// Printf writes to the command output.
func (c *Context) Printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out(), format, args...)
}

func (c *Context) Println(args ...interface{}) {
	fmt.Fprintln(c.out(), args...)
}

func (c *Context) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// Ask runs Confirm, or a huh confirmation when none is set.
func (c *Context) Ask(title, description string) (bool, error) {
	if c.Confirm != nil {
		return c.Confirm(title, description)
	}

	var confirmed bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&confirmed),
		),
	).WithTheme(huh.ThemeBase()).Run()
	if err != nil {
		return false, err
	}
	return confirmed, nil
}
