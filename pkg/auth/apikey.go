package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Credential is a stored upstream API key. Multiple keys can be stored under
// different labels; "default" is used when the caller does not care.
type Credential struct {
	Label        string    `json:"label"`
	APIKey       string    `json:"api_key"`
	LastModified time.Time `json:"last_modified"`
}

// DefaultLabel names the key used when none is specified.
const DefaultLabel = "default"

// Store is the interface for persisting API keys.
type Store interface {
	// Store saves a credential
	Store(cred *Credential) error

	// Retrieve gets the credential for a label
	Retrieve(label string) (*Credential, error)

	// List returns all stored credentials
	List() ([]*Credential, error)

	// Delete removes the credential for a label
	Delete(label string) error

	// Exists checks whether a credential exists for a label
	Exists(label string) bool
}

var (
	ErrKeyNotFound      = errors.New("API key not found")
	ErrInvalidKey       = errors.New("invalid API key")
	ErrStoreUnavailable = errors.New("key store unavailable")
)

// Manager layers several stores: the system keychain when available, an
// encrypted file as fallback, the environment as a read-only last resort.
type Manager struct {
	stores []Store
}

// NewManager creates a key manager with the available storage backends.
func NewManager() (*Manager, error) {
	var stores []Store

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := configDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "keys.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves a key using the first store that accepts it.
func (m *Manager) Store(cred *Credential) error {
	if cred == nil || cred.APIKey == "" {
		return ErrInvalidKey
	}
	if cred.Label == "" {
		cred.Label = DefaultLabel
	}
	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(cred); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store API key: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the key for a label from the first store that has it.
func (m *Manager) Retrieve(label string) (*Credential, error) {
	if label == "" {
		label = DefaultLabel
	}
	for _, store := range m.stores {
		if cred, err := store.Retrieve(label); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, label)
}

// ResolveKey returns the API key to use: an explicit key wins, then the
// stored default, then the environment.
func (m *Manager) ResolveKey(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	cred, err := m.Retrieve(DefaultLabel)
	if err != nil {
		return "", err
	}
	return cred.APIKey, nil
}

// List returns all stored keys, deduplicated by label with the most recently
// modified version winning.
func (m *Manager) List() ([]*Credential, error) {
	byLabel := make(map[string]*Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			if existing, ok := byLabel[cred.Label]; !ok || cred.LastModified.After(existing.LastModified) {
				byLabel[cred.Label] = cred
			}
		}
	}

	var result []*Credential
	for _, cred := range byLabel {
		result = append(result, cred)
	}
	return result, nil
}

// Delete removes the key for a label from every store.
func (m *Manager) Delete(label string) error {
	if label == "" {
		label = DefaultLabel
	}

	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(label); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete API key: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, label)
	}
	return nil
}

// MaskKey masks all but the first and last 4 characters of a key for
// display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "********"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// configDir returns the per-user configuration directory.
func configDir() (string, error) {
	var dir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "xrecap")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "xrecap")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			dir = filepath.Join(xdgConfig, "xrecap")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", "xrecap")
		}
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}
