package secret

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Require when a secret is missing or empty.
var ErrNotFound = errors.New("secret not found")

// SecretStore provides a pluggable interface for sensitive values such
// as the API token. EnvStore reads the process environment; KeychainStore
// uses the macOS Keychain.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// Require returns the secret under key as a string, failing with
// ErrNotFound when it is missing or empty.
func Require(store SecretStore, key string) (string, error) {
	v, err := store.Get(key)
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", key, err)
	}
	if len(v) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return string(v), nil
}
