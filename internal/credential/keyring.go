// Package credential stores secrets in the system keyring, with
// environment variables as a fallback for headless machines.
package credential

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const serviceName = "inbox-triage"

// Credential keys.
const (
	KeyIMAPPassword = "imap-password"
	KeyAIAPIKey     = "ai-api-key"
)

// envFallback maps credential keys to the environment variables read when
// the keyring has no entry.
var envFallback = map[string]string{
	KeyIMAPPassword: "TRIAGE_IMAP_PASSWORD",
	KeyAIAPIKey:     "TRIAGE_AI_API_KEY",
}

// ErrMissing is returned when neither the keyring nor the environment
// holds a credential.
var ErrMissing = errors.New("credential not found")

// openKeyring returns a configured keyring instance.
var openKeyring = func() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/inbox-triage/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("inbox-triage-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring, then
// from the key's environment variable.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err == nil {
		item, getErr := ring.Get(key)
		if getErr == nil && len(item.Data) > 0 {
			return string(item.Data), nil
		}
		err = getErr
	}

	if env, ok := envFallback[key]; ok {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}

	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return "", fmt.Errorf("credential %q: %w", key, ErrMissing)
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
