// Package storage is the opaque key/value blob store the firmware persists
// small documents into (the NVS analogue). Values are raw bytes; callers own
// their encoding.
package storage

import "sync"

// Fixed keys.
const (
	Peripherals = "peripherals" // last supplied peripheral configuration document
)

// Store is the minimal blob-store contract.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, val []byte) error
	Clear(key string) error
}

// MemStore is an in-memory Store, used on the host and in tests.
type MemStore struct {
	mu sync.Mutex
	m  map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string][]byte)}
}

func (s *MemStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

func (s *MemStore) Set(key string, val []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), val...)
	return nil
}

func (s *MemStore) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}
