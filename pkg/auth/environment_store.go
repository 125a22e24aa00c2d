package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads the API key from the environment. It is read-only
// and always serves the default label.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-backed store.
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables.
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve reads the key from XRECAP_API_KEY.
func (e *EnvironmentStore) Retrieve(label string) (*Credential, error) {
	key := os.Getenv("XRECAP_API_KEY")
	if key == "" {
		return nil, ErrKeyNotFound
	}

	if label == "" {
		label = DefaultLabel
	}
	return &Credential{
		Label:        label,
		APIKey:       key,
		LastModified: time.Now(),
	}, nil
}

// List returns the environment key if set.
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables.
func (e *EnvironmentStore) Delete(label string) error {
	return ErrStoreUnavailable
}

// Exists checks whether the environment key is set.
func (e *EnvironmentStore) Exists(label string) bool {
	return os.Getenv("XRECAP_API_KEY") != ""
}
