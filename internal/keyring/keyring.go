package keyring

import (
	"errors"
	"fmt"
	"sort"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/habitd/internal/constants"
)

var (
	// ErrNotFound is returned when no value is stored under the key
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
	// ErrUnknownKey is returned for keys habitd does not manage
	ErrUnknownKey = errors.New("unknown keyring key")
)

// Keys maps the names accepted on the command line to keyring entries.
var Keys = map[string]string{
	"database":    constants.KeyringDatabase,
	"auth-secret": constants.KeyringAuthSecret,
}

// KeyNames returns the accepted key names in sorted order.
func KeyNames() []string {
	names := make([]string, 0, len(Keys))
	for name := range Keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func entry(name string) (string, error) {
	user, ok := Keys[name]
	if !ok {
		return "", fmt.Errorf("%w: %q (expected one of %v)", ErrUnknownKey, name, KeyNames())
	}
	return user, nil
}

// Get retrieves the value stored under name.
// Returns ErrNotFound if nothing is stored.
func Get(name string) (string, error) {
	user, err := entry(name)
	if err != nil {
		return "", err
	}
	value, err := keyring.Get(constants.AppName, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return value, nil
}

func Set(name, value string) error {
	user, err := entry(name)
	if err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if err := keyring.Set(constants.AppName, user, value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", name, err)
	}
	return nil
}

func Delete(name string) error {
	user, err := entry(name)
	if err != nil {
		return err
	}
	if err := keyring.Delete(constants.AppName, user); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", name, err)
	}
	return nil
}

// GetConnectionString retrieves the database connection string.
func GetConnectionString() (string, error) {
	return Get("database")
}

// GetAuthSecret retrieves the HS256 token secret.
func GetAuthSecret() (string, error) {
	return Get("auth-secret")
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
