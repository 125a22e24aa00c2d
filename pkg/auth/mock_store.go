package auth

import (
	"sync"
)

// MockStore implements Store for testing purposes.
type MockStore struct {
	creds map[string]*Credential
	mu    sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock key store.
func NewMockStore() *MockStore {
	return &MockStore{
		creds: make(map[string]*Credential),
	}
}

func (m *MockStore) Store(cred *Credential) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cred == nil || cred.Label == "" {
		return ErrInvalidKey
	}

	copied := *cred
	m.creds[cred.Label] = &copied
	return nil
}

func (m *MockStore) Retrieve(label string) (*Credential, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if label == "" {
		return nil, ErrInvalidKey
	}

	cred, ok := m.creds[label]
	if !ok {
		return nil, ErrKeyNotFound
	}
	copied := *cred
	return &copied, nil
}

func (m *MockStore) List() ([]*Credential, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Credential
	for _, cred := range m.creds {
		copied := *cred
		out = append(out, &copied)
	}
	return out, nil
}

func (m *MockStore) Delete(label string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if label == "" {
		return ErrInvalidKey
	}
	if _, ok := m.creds[label]; !ok {
		return ErrKeyNotFound
	}
	delete(m.creds, label)
	return nil
}

func (m *MockStore) Exists(label string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.creds[label]
	return ok
}

// Count returns the number of stored keys.
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.creds)
}

// NewMockManager creates a Manager backed only by a mock store.
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return &Manager{stores: []Store{store}}, store
}

// NewManagerWithStores creates a Manager over explicit stores.
func NewManagerWithStores(stores ...Store) *Manager {
	return &Manager{stores: stores}
}
