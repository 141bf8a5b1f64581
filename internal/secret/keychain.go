package secret

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultKeychainService is the Keychain service the token is filed under.
const DefaultKeychainService = "airexport"

// itemNotFound is the exit status of `security` for a missing item.
const itemNotFound = 44

// KeychainStore implements SecretStore using the macOS Keychain
// via the `security` CLI tool. Keys are Keychain account names.
type KeychainStore struct {
	Service string

	// run executes the security tool; swapped in tests.
	run func(args ...string) ([]byte, error)
}

// NewKeychainStore creates a KeychainStore for service.
func NewKeychainStore(service string) *KeychainStore {
	if service == "" {
		service = DefaultKeychainService
	}
	return &KeychainStore{Service: service, run: runSecurity}
}

func runSecurity(args ...string) ([]byte, error) {
	return exec.Command("security", args...).Output()
}

// Set stores a secret, replacing an existing entry.
func (k *KeychainStore) Set(key string, value []byte) error {
	_, err := k.run("add-generic-password", "-a", key, "-s", k.Service, "-w", string(value), "-U")
	if err != nil {
		return fmt.Errorf("keychain set %s: %s", key, describe(err))
	}
	return nil
}

// Get retrieves a secret. A missing item yields an empty slice and no error.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	out, err := k.run("find-generic-password", "-a", key, "-s", k.Service, "-w")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == itemNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("keychain get %s: %s", key, describe(err))
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

// Delete removes a secret. Deleting a missing item is not an error.
func (k *KeychainStore) Delete(key string) error {
	_, err := k.run("delete-generic-password", "-a", key, "-s", k.Service)
	var exitErr *exec.ExitError
	if err != nil && !(errors.As(err, &exitErr) && exitErr.ExitCode() == itemNotFound) {
		return fmt.Errorf("keychain delete %s: %s", key, describe(err))
	}
	return nil
}

func describe(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return strings.TrimSpace(string(exitErr.Stderr))
	}
	return err.Error()
}
