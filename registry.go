package main

import (
	"context"
	"errors"
	"log"
	"sync"
)

const maxEngines = 10000

var ErrRegistryFull = errors.New("too many active players")

// Registry holds one Engine per player so every connection of a player
// shares the same state. Engines are reference counted: each successful Get
// must be paired with one Release.
type Registry struct {
	mu       sync.RWMutex
	engines  map[string]*registryEntry
	kv       KVStore
	defaults ProfileDefaults
	tracker  Tracker
}

// NewRegistry creates a Registry backed by kv
func NewRegistry(kv KVStore, defaults ProfileDefaults, tracker Tracker) *Registry {
	return &Registry{
		engines:  make(map[string]*registryEntry),
		kv:       kv,
		defaults: defaults,
		tracker:  tracker,
	}
}

type registryEntry struct {
	engine *Engine
	refs   int
}

// Get returns the player's engine, loading it on first use, and takes a
// reference on it. The LoadResult is non-nil only for the call that
// performed the load.
func (r *Registry) Get(ctx context.Context, playerID, username string) (*Engine, *LoadResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.engines[playerID]; ok {
		entry.refs++
		return entry.engine, nil, nil
	}
	if len(r.engines) >= maxEngines {
		return nil, nil, ErrRegistryFull
	}

	store := NewProfileStore(r.kv, playerID, r.defaults)
	e, res, err := LoadEngine(ctx, store, username, r.tracker)
	if err != nil {
		return nil, nil, err
	}
	r.engines[playerID] = &registryEntry{engine: e, refs: 1}
	return e, res, nil
}

// Lookup returns an already loaded engine without taking a reference
func (r *Registry) Lookup(playerID string) *Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.engines[playerID]; ok {
		return entry.engine
	}
	return nil
}

// Release drops one reference. The last one flushes and unloads the engine.
// The flush runs under the registry lock so a reload never reads stale storage.
func (r *Registry) Release(ctx context.Context, playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.engines[playerID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs > 0 {
		return
	}
	delete(r.engines, playerID)
	if err := entry.engine.Flush(ctx); err != nil {
		log.Printf("registry: flush %s on release: %v", playerID, err)
	}
}

// Count returns the number of loaded engines
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}

// FlushAll persists every loaded engine, returning the first error
func (r *Registry) FlushAll(ctx context.Context) error {
	r.mu.RLock()
	engines := make([]*Engine, 0, len(r.engines))
	for _, entry := range r.engines {
		engines = append(engines, entry.engine)
	}
	r.mu.RUnlock()

	var first error
	for _, e := range engines {
		if err := e.Flush(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// IsAdmin reports the admin flag of a player's profile without loading an engine.
// Players with no stored profile get the configured default.
func (r *Registry) IsAdmin(ctx context.Context, playerID string) (bool, error) {
	if e := r.Lookup(playerID); e != nil {
		p := e.Snapshot()
		return p.IsAdmin, nil
	}
	p, err := ReadProfile(ctx, r.kv, playerID)
	if errors.Is(err, ErrKeyNotFound) {
		return r.defaults.IsAdmin, nil
	}
	if err != nil {
		return false, err
	}
	return p.IsAdmin, nil
}
