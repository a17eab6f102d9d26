// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/kozaktomas/fingerprint-matcher/internal/database"
)

// MockIdentityStore is an in-memory implementation of database.Store
type MockIdentityStore struct {
	mu         sync.RWMutex
	identities map[int64]database.StoredIdentity
	scanLogs   []database.ScanLog
	fetchCalls int

	// Error injection
	ListError  error
	FetchError error
	CountError error
	SaveError  error

	// FetchHook runs before every FetchByIDs call; tests use it to block or count chunks
	FetchHook func(ids []int64)
}

// NewMockIdentityStore creates a new mock identity store
func NewMockIdentityStore() *MockIdentityStore {
	return &MockIdentityStore{
		identities: make(map[int64]database.StoredIdentity),
	}
}

// AddIdentity adds an identity to the mock store
func (m *MockIdentityStore) AddIdentity(identity database.StoredIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[identity.ID] = identity
}

// RemoveIdentity deletes an identity, simulating a concurrent unenrollment
func (m *MockIdentityStore) RemoveIdentity(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.identities, id)
}

// ListEnrolledIDs returns the stored ids in ascending order
func (m *MockIdentityStore) ListEnrolledIDs(ctx context.Context) ([]int64, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int64, 0, len(m.identities))
	for id := range m.identities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// FetchByIDs returns the identities present in the store for the given ids
func (m *MockIdentityStore) FetchByIDs(ctx context.Context, ids []int64) (map[int64]database.StoredIdentity, error) {
	if m.FetchHook != nil {
		m.FetchHook(ids)
	}

	m.mu.Lock()
	m.fetchCalls++
	m.mu.Unlock()

	if m.FetchError != nil {
		return nil, m.FetchError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[int64]database.StoredIdentity, len(ids))
	for _, id := range ids {
		if identity, ok := m.identities[id]; ok {
			result[id] = identity
		}
	}
	return result, nil
}

// Count returns the number of stored identities
func (m *MockIdentityStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.identities), nil
}

// List returns a page of identities ordered by id
func (m *MockIdentityStore) List(ctx context.Context, limit, offset int) ([]database.StoredIdentity, error) {
	ids, err := m.ListEnrolledIDs(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []database.StoredIdentity
	for i := offset; i < len(ids) && len(result) < limit; i++ {
		result = append(result, m.identities[ids[i]])
	}
	return result, nil
}

// SaveScanLog records the scan log in memory
func (m *MockIdentityStore) SaveScanLog(ctx context.Context, log database.ScanLog) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanLogs = append(m.scanLogs, log)
	return nil
}

// ScanLogs returns a copy of the saved scan logs
func (m *MockIdentityStore) ScanLogs() []database.ScanLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.scanLogs)
}

// FetchCalls returns how many times FetchByIDs was called
func (m *MockIdentityStore) FetchCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetchCalls
}

// Close is a no-op
func (m *MockIdentityStore) Close() error {
	return nil
}

// Verify interface compliance at compile time
var _ database.Store = (*MockIdentityStore)(nil)
