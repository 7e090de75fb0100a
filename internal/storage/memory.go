package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory credential store. It exists for tests and for
// running the service without any persistence configured; credentials are
// lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		creds: make(map[string]map[string]string),
	}
}

func (m *MemoryStore) GetField(ctx context.Context, provider, field string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fields, ok := m.creds[provider]
	if !ok {
		return "", false, nil
	}
	value, ok := fields[field]
	return value, ok, nil
}

func (m *MemoryStore) GetAll(ctx context.Context, provider string) (map[string]string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fields, ok := m.creds[provider]
	if !ok || len(fields) == 0 {
		return nil, false, nil
	}

	snapshot := make(map[string]string, len(fields))
	for k, v := range fields {
		snapshot[k] = v
	}
	return snapshot, true, nil
}

func (m *MemoryStore) SetField(ctx context.Context, provider, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields, ok := m.creds[provider]
	if !ok {
		fields = make(map[string]string)
		m.creds[provider] = fields
	}
	fields[field] = value
	return nil
}

func (m *MemoryStore) ReplaceCredential(ctx context.Context, provider string, fields map[string]string) error {
	replacement := make(map[string]string, len(fields))
	for k, v := range fields {
		replacement[k] = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.creds[provider] = replacement
	return nil
}

func (m *MemoryStore) DeleteCredential(ctx context.Context, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.creds, provider)
	return nil
}

func (m *MemoryStore) Providers(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	providers := make([]string, 0, len(m.creds))
	for provider, fields := range m.creds {
		if len(fields) > 0 {
			providers = append(providers, provider)
		}
	}
	return providers, nil
}

func (m *MemoryStore) Health(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
