package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
)

const (
	serviceName = "todosync"
	tokenKey    = "api-token"

	// EnvToken overrides the stored token when set.
	EnvToken = "TODOSYNC_TOKEN"
)

// ErrNoToken is returned when no token has been stored.
var ErrNoToken = errors.New("no API token stored; run 'todosync login'")

// Opener opens the keyring backing a Store.
type Opener func() (keyring.Keyring, error)

// Store keeps the API bearer token in the system keyring.
type Store struct {
	open Opener
}

// NewStore returns a Store over the system keyring. configDir holds the
// encrypted-file fallback used when no OS keyring is available.
func NewStore(configDir string) *Store {
	return &Store{open: systemKeyring(configDir)}
}

// NewStoreWith returns a Store over a caller-supplied keyring.
func NewStoreWith(open Opener) *Store {
	return &Store{open: open}
}

func systemKeyring(configDir string) Opener {
	return func() (keyring.Keyring, error) {
		ring, err := keyring.Open(keyring.Config{
			ServiceName: serviceName,
			AllowedBackends: []keyring.BackendType{
				keyring.KeychainBackend,
				keyring.SecretServiceBackend,
				keyring.WinCredBackend,
				keyring.PassBackend,
				keyring.FileBackend,
			},
			FileDir:                  filepath.Join(configDir, "credentials"),
			FilePasswordFunc:         keyring.FixedStringPrompt("todosync-file-key"),
			KeychainTrustApplication: true,
		})
		if err != nil {
			return nil, fmt.Errorf("opening keyring: %w", err)
		}
		return ring, nil
	}
}

// Token implements remote.TokenProvider. TODOSYNC_TOKEN wins over the
// keyring.
func (s *Store) Token(context.Context) (string, error) {
	if tok := os.Getenv(EnvToken); tok != "" {
		return tok, nil
	}

	ring, err := s.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(tokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("getting API token: %w", err)
	}

	return string(item.Data), nil
}

// SetToken stores the API token in the keyring.
func (s *Store) SetToken(token string) error {
	ring, err := s.open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   tokenKey,
		Data:  []byte(token),
		Label: "todosync API token",
	})
	if err != nil {
		return fmt.Errorf("setting API token: %w", err)
	}

	return nil
}

// DeleteToken removes the stored token. Removing a missing token is not
// an error.
func (s *Store) DeleteToken() error {
	ring, err := s.open()
	if err != nil {
		return err
	}

	err = ring.Remove(tokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting API token: %w", err)
	}

	return nil
}
