package system

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/habitd/internal/cli"
	"github.com/julianstephens/habitd/internal/keyring"
	"github.com/julianstephens/habitd/internal/storage/postgres"
)

// KeyringSetCmd stores a credential in the OS keyring
type KeyringSetCmd struct {
	Key   string `arg:"" enum:"database,auth-secret" help:"Entry to store: database or auth-secret."`
	Value string `arg:"" help:"Value to store."`
}

func (cmd *KeyringSetCmd) Run(ctx *cli.Context) error {
	if cmd.Key == "database" {
		if !postgres.IsConnString(cmd.Value) && !strings.Contains(cmd.Value, "host=") {
			return errors.New("connection string must be a valid PostgreSQL connection string")
		}
		if _, err := postgres.ValidateConnString(cmd.Value); err != nil {
			if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return fmt.Errorf("invalid connection string: %w", err)
			}
			ctx.Println("⚠️  Warning: Connection string contains embedded credentials.")
			ctx.Println("   It will be stored as-is in the encrypted OS keyring.")
		}
	}

	if err := keyring.Set(cmd.Key, cmd.Value); err != nil {
		return err
	}

	ctx.Printf("✓ %s stored successfully in OS keyring\n", cmd.Key)
	if cmd.Key == "database" {
		ctx.Printf("  Set database: %s (or HABITD_DATABASE=%s) to use it\n", cli.DatabaseFromKeyring, cli.DatabaseFromKeyring)
	}
	return nil
}

// KeyringGetCmd prints a stored credential with secrets masked
type KeyringGetCmd struct {
	Key string `arg:"" enum:"database,auth-secret" help:"Entry to read: database or auth-secret."`
}

func (cmd *KeyringGetCmd) Run(ctx *cli.Context) error {
	value, err := keyring.Get(cmd.Key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("no %s found in keyring. Use 'habitd keyring set %s' to store one", cmd.Key, cmd.Key)
		}
		return fmt.Errorf("failed to retrieve %s from keyring: %w", cmd.Key, err)
	}

	ctx.Printf("%s retrieved from keyring:\n", cmd.Key)
	if cmd.Key == "database" {
		ctx.Println(maskPassword(value))
	} else {
		ctx.Println(maskSecret(value))
	}
	return nil
}

type KeyringDeleteCmd struct {
	Key string `arg:"" enum:"database,auth-secret" help:"Entry to delete: database or auth-secret."`
}

func (cmd *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	if err := keyring.Delete(cmd.Key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("no %s found in keyring", cmd.Key)
		}
		return err
	}

	ctx.Printf("✓ %s deleted from OS keyring\n", cmd.Key)
	return nil
}

// KeyringStatusCmd checks the availability of the OS keyring
type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		ctx.Println("❌ OS keyring is not available on this system")
		return errors.New("keyring unavailable")
	}

	ctx.Println("✓ OS keyring is available")
	for _, name := range keyring.KeyNames() {
		if _, err := keyring.Get(name); err == nil {
			ctx.Printf("✓ %s is stored in keyring\n", name)
		} else if errors.Is(err, keyring.ErrNotFound) {
			ctx.Printf("ℹ No %s stored in keyring\n", name)
		}
	}
	return nil
}

// maskPassword masks passwords in connection strings for display
func maskPassword(connStr string) string {
	if postgres.IsConnString(connStr) {
		if idx := strings.Index(connStr, "://"); idx != -1 {
			remaining := connStr[idx+3:]
			// The last @ separates user info from host.
			if atIdx := strings.LastIndex(remaining, "@"); atIdx != -1 {
				userInfo := remaining[:atIdx]
				if colonIdx := strings.Index(userInfo, ":"); colonIdx != -1 {
					return connStr[:idx+3] + userInfo[:colonIdx] + ":****" + connStr[idx+3+atIdx:]
				}
			}
		}
		return connStr
	}

	if strings.Contains(connStr, "password=") {
		parts := strings.Fields(connStr)
		for i, part := range parts {
			if strings.HasPrefix(part, "password=") {
				parts[i] = "password=****"
			}
		}
		return strings.Join(parts, " ")
	}
	return connStr
}

// maskSecret keeps the last four characters of long secrets.
func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
