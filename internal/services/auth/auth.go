package auth

import (
	"errors"
	"os"
	"strings"
)

const ServiceName = "cloudharvest"

var ErrTokenNotFound = errors.New("auth token not found")

type Store interface {
	SetToken(provider string, token string) error
	GetToken(provider string) (string, error)
	DeleteToken(provider string) error
}

// DefaultStore returns the OS keychain store, overridable per provider with
// a CLOUDHARVEST_<PROVIDER>_TOKEN environment variable.
func DefaultStore() Store {
	return NewEnvStore(NewKeyringStore(ServiceName), os.LookupEnv)
}

// NormalizeProvider normalizes a provider name for consistent key lookup.
func NormalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

// HasToken reports whether store holds a token for provider. A missing
// token is not an error.
func HasToken(store Store, provider string) (bool, error) {
	_, err := store.GetToken(provider)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrTokenNotFound):
		return false, nil
	default:
		return false, err
	}
}

// EnvVar returns the environment variable that overrides provider's token.
func EnvVar(provider string) string {
	name := strings.ReplaceAll(NormalizeProvider(provider), "-", "_")
	return "CLOUDHARVEST_" + strings.ToUpper(name) + "_TOKEN"
}

// EnvStore reads tokens from the environment before its fallback store.
// Writes and deletes go to the fallback only.
type EnvStore struct {
	fallback Store
	lookup   func(string) (string, bool)
}

func NewEnvStore(fallback Store, lookup func(string) (string, bool)) *EnvStore {
	return &EnvStore{fallback: fallback, lookup: lookup}
}

func (e *EnvStore) SetToken(provider string, token string) error {
	return e.fallback.SetToken(provider, token)
}

func (e *EnvStore) GetToken(provider string) (string, error) {
	if token, ok := e.lookup(EnvVar(provider)); ok && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token), nil
	}
	return e.fallback.GetToken(provider)
}

func (e *EnvStore) DeleteToken(provider string) error {
	return e.fallback.DeleteToken(provider)
}
