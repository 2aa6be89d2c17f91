package transport

import (
	"context"
	"sync"
)

// InFlightRegistry tracks running executions so that a DELETE request can
// cancel one while it is still in progress. It maps execution IDs to the
// cancel functions of their request contexts.
//
// All methods are safe for concurrent access.
type InFlightRegistry struct {
	mu      sync.Mutex
	next    uint64
	entries map[string]inflightEntry
}

type inflightEntry struct {
	gen    uint64
	cancel context.CancelFunc
}

// NewInFlightRegistry creates a new empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{
		entries: make(map[string]inflightEntry),
	}
}

// Register adds a running execution and returns the function that drops it
// again once it completes. It returns false without registering when id is
// already in flight.
//
// The release function only drops this registration: after a Cancel the ID
// may be registered by a new execution, and releasing the old one leaves
// the new entry in place.
func (r *InFlightRegistry) Register(id string, cancel context.CancelFunc) (release func(), ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; exists {
		return nil, false
	}
	r.next++
	gen := r.next
	r.entries[id] = inflightEntry{gen: gen, cancel: cancel}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if e, ok := r.entries[id]; ok && e.gen == gen {
			delete(r.entries, id)
		}
	}, true
}

// Cancel cancels a running execution. Returns false if the ID is not
// registered (already completed or never existed).
func (r *InFlightRegistry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.cancel()
	delete(r.entries, id)
	return true
}

// Len returns the number of executions in flight.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
