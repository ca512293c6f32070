package auth

import (
	"errors"
	"os"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It is read-only; Store and Delete report that writes are unsupported.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-backed credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(creds *Credentials) error {
	return errors.New("environment store is read-only")
}

// Retrieve reads credentials from FETSCRAPER_USERNAME and FETSCRAPER_PASSWORD
func (e *EnvironmentStore) Retrieve() (*Credentials, error) {
	username := os.Getenv("FETSCRAPER_USERNAME")
	password := os.Getenv("FETSCRAPER_PASSWORD")
	if username == "" || password == "" {
		return nil, ErrNotFound
	}
	return &Credentials{Username: username, Password: password}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete() error {
	return errors.New("environment store is read-only")
}
