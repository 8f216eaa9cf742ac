package main

import (
	"context"
	"errors"
	"sync"
)

// Storage keys for the two persisted records of a player
const (
	ProfileKey  = "mc_user"
	UpgradesKey = "mc_upgrades"
)

// ErrKeyNotFound is returned by KVStore.Get when nothing is stored under the key
var ErrKeyNotFound = errors.New("key not found")

// KVStore is durable string key-value storage, partitioned by player.
type KVStore interface {
	Get(ctx context.Context, playerID, key string) (string, error)
	Set(ctx context.Context, playerID, key, value string) error
}

// MemoryStore is a KVStore kept in process memory. Used in tests and when
// running without a database.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
	// FailWrites makes Set return an error, to exercise storage outages
	FailWrites bool
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, playerID, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[playerID+"/"+key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, playerID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errors.New("storage unavailable")
	}
	m.data[playerID+"/"+key] = value
	return nil
}
