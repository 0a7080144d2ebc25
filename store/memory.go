package store

import "sync"

// Memory keeps programs in a map. It is mostly useful in tests and to share
// compiled programs between caches of one process.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory returns an empty store.
func NewMemory() *Memory { return &Memory{entries: map[string][]byte{}} }

func (m *Memory) Load(digest string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.entries[digest]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (m *Memory) Save(digest string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[digest] = append([]byte(nil), data...)
	return nil
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
