package secret

import (
	"os"
	"strings"
)

// DefaultTokenEnv is the variable holding the API token unless configured otherwise.
const DefaultTokenEnv = "AIRTABLE_BEARER_KEY"

// EnvStore implements SecretStore over environment variables.
type EnvStore struct{}

// NewEnvStore creates a new EnvStore.
func NewEnvStore() *EnvStore {
	return &EnvStore{}
}

// Set exports value into the current process environment.
func (e *EnvStore) Set(key string, value []byte) error {
	return os.Setenv(key, string(value))
}

// Get reads the variable, trimming surrounding whitespace.
func (e *EnvStore) Get(key string) ([]byte, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil, nil
	}
	return []byte(v), nil
}

// Delete unsets the variable.
func (e *EnvStore) Delete(key string) error {
	return os.Unsetenv(key)
}
