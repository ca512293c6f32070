package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNotFound is returned when no stored credentials exist
var ErrNotFound = errors.New("credentials not found")

// ErrInvalidCredentials is returned for empty or malformed credentials
var ErrInvalidCredentials = errors.New("invalid credentials")

// Credentials holds a site login
type Credentials struct {
	Username     string    `json:"username"`
	Password     string    `json:"password"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves the credentials
	Store(creds *Credentials) error

	// Retrieve gets the stored credentials
	Retrieve() (*Credentials, error)

	// Delete removes the stored credentials
	Delete() error
}

// Manager handles credential storage with fallback mechanisms: system
// keychain first, encrypted file second, environment variables last.
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager with the available backends
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves credentials using the first store that accepts them
func (m *Manager) Store(creds *Credentials) error {
	if creds == nil || creds.Username == "" || creds.Password == "" {
		return ErrInvalidCredentials
	}
	creds.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(creds); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("all credential stores failed: %w", lastErr)
}

// Retrieve returns credentials from the first store that has them
func (m *Manager) Retrieve() (*Credentials, error) {
	for _, store := range m.stores {
		if creds, err := store.Retrieve(); err == nil {
			return creds, nil
		}
	}
	return nil, ErrNotFound
}

// Delete removes credentials from every store that holds them
func (m *Manager) Delete() error {
	deleted := false
	for _, store := range m.stores {
		if err := store.Delete(); err == nil {
			deleted = true
		}
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

func getConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "fetscraper")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}
