package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// accountSuffix namespaces provider tokens inside the keychain service so
// they never collide with other secrets stored under the same service.
const accountSuffix = "-api-token"

// KeyringStore keeps provider API tokens in the OS keychain, one account
// per provider under a single service name.
type KeyringStore struct {
	service string
}

// NewKeyringStore returns a store for service, or ServiceName when empty.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = ServiceName
	}
	return &KeyringStore{service: service}
}

// Account returns the keychain account that holds provider's token.
func Account(provider string) string {
	return NormalizeProvider(provider) + accountSuffix
}

func (k *KeyringStore) SetToken(provider string, token string) error {
	if NormalizeProvider(provider) == "" {
		return fmt.Errorf("auth: provider name is required")
	}
	if err := keyring.Set(k.service, Account(provider), token); err != nil {
		return fmt.Errorf("auth: store %s token: %w", NormalizeProvider(provider), err)
	}
	return nil
}

func (k *KeyringStore) GetToken(provider string) (string, error) {
	token, err := keyring.Get(k.service, Account(provider))
	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, keyring.ErrNotFound):
		return "", ErrTokenNotFound
	default:
		return "", fmt.Errorf("auth: read %s token: %w", NormalizeProvider(provider), err)
	}
}

func (k *KeyringStore) DeleteToken(provider string) error {
	err := keyring.Delete(k.service, Account(provider))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keyring.ErrNotFound):
		return ErrTokenNotFound
	default:
		return fmt.Errorf("auth: delete %s token: %w", NormalizeProvider(provider), err)
	}
}
