// Package secrets keeps webhook credentials out of the config file.
//
// A config value of the form "keyring:<name>" is resolved against the OS
// keyring at load time. Webhook URLs embed their own access token, so
// storing them in plain config.json is discouraged.
package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "creatorhook"
	// RefPrefix marks a config value stored in the keyring.
	RefPrefix = "keyring:"
)

// ErrNotFound is returned when the keyring has no entry for a name.
var ErrNotFound = errors.New("secret not found in keyring")

// IsRef reports whether value points at a keyring entry.
func IsRef(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), RefPrefix)
}

// Ref builds the config reference for name.
func Ref(name string) string {
	return RefPrefix + name
}

// Store saves value under name.
func Store(name, value string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("secret name is required")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret value is required")
	}
	if err := keyring.Set(keyringService, name, value); err != nil {
		return fmt.Errorf("keyring set %s: %w", name, err)
	}
	return nil
}

// Lookup returns the value stored under name.
func Lookup(name string) (string, error) {
	val, err := keyring.Get(keyringService, strings.TrimSpace(name))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("keyring get %s: %w", name, err)
	}
	return val, nil
}

// Delete removes name from the keyring. Missing entries are not an error.
func Delete(name string) error {
	err := keyring.Delete(keyringService, strings.TrimSpace(name))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %s: %w", name, err)
	}
	return nil
}

// Resolve returns value unchanged unless it is a keyring reference, in
// which case the stored secret is returned.
func Resolve(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, RefPrefix) {
		return value, nil
	}
	name := strings.TrimPrefix(trimmed, RefPrefix)
	if name == "" {
		return "", fmt.Errorf("empty keyring reference %q", value)
	}
	return Lookup(name)
}
