package shared

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name under which client secrets are stored in the OS keychain.
const KeyringService = "plmigrate"

func secretKey(service string) string {
	return service + "-client-secret"
}

// StoreSecret saves an OAuth client secret for service in the OS keychain.
func StoreSecret(service, secret string) error {
	if secret == "" {
		return fmt.Errorf("%w: empty secret", ErrInvalidArgument)
	}
	if err := keyring.Set(KeyringService, secretKey(service), secret); err != nil {
		return fmt.Errorf("failed to store secret in keychain: %w", err)
	}
	return nil
}

// DeleteSecret removes a stored client secret. Missing secrets are not an error.
func DeleteSecret(service string) error {
	err := keyring.Delete(KeyringService, secretKey(service))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete secret from keychain: %w", err)
	}
	return nil
}

// ResolveSecret returns the configured client secret, falling back to the OS keychain when the config leaves it empty.
func (s ServiceConfig) ResolveSecret(service string) (string, error) {
	if s.ClientSecret != "" {
		return s.ClientSecret, nil
	}

	secret, err := keyring.Get(KeyringService, secretKey(service))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: no client secret configured for %s", ErrMissingCredentials, service)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read secret from keychain: %w", err)
	}
	return secret, nil
}
