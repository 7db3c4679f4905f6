package testutil

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/udisondev/pathgrid/internal/store"
)

// ErrSimulated is returned by MemStore operations set up to fail.
var ErrSimulated = errors.New("simulated error for testing")

// MemStore: in-memory store.BlobStore для unit тестов. Считает записи и
// умеет падать по запросу, чтобы проверять пути восстановления.
type MemStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	saves int

	FailLoad bool
	FailSave bool
}

var _ store.BlobStore = (*MemStore)(nil)

// NewMemStore создаёт пустой MemStore.
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

func (m *MemStore) Load(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailLoad {
		return nil, ErrSimulated
	}
	data, ok := m.blobs[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	// Копия, чтобы тест не испортил сохранённый blob
	return slices.Clone(data), nil
}

func (m *MemStore) Save(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSave {
		return ErrSimulated
	}
	m.blobs[name] = slices.Clone(data)
	m.saves++
	return nil
}

func (m *MemStore) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	return nil
}

// Put stores a blob directly, bypassing the save counter.
func (m *MemStore) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = slices.Clone(data)
}

// Saves returns how many successful Save calls were made.
func (m *MemStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Names returns the stored blob names, sorted.
func (m *MemStore) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.blobs))
}
