// Package interceptor provides an ordered registry of request or response processing steps.
//
// Each registered Interceptor gets a stable id.
// Ejecting an interceptor marks its slot as removed, ids of other interceptors never change
// and an id is never reused.
package interceptor

import (
	"context"
	"fmt"
	"sync"
)

// Resolved handler processes a value of the successful chain.
type Resolved[T any] func(ctx context.Context, value T) (T, error)

// Rejected handler processes a failure of the chain.
// If it returns no error, the chain continues as successful with the returned value.
type Rejected[T any] func(ctx context.Context, err error) (T, error)

// Interceptor is a pair of handlers, the Rejected handler is optional.
type Interceptor[T any] struct {
	Resolved Resolved[T]
	Rejected Rejected[T]
}

type slotState int

const (
	slotActive slotState = iota
	slotRemoved
)

// slot is either active, with an interceptor, or removed.
type slot[T any] struct {
	state       slotState
	interceptor Interceptor[T]
}

// Manager is an ordered registry of interceptors, it is safe for concurrent use.
type Manager[T any] struct {
	lock  sync.RWMutex
	slots []slot[T]
}

// NewManager creates an empty Manager.
func NewManager[T any]() *Manager[T] {
	return &Manager[T]{}
}

// Use registers a new interceptor and returns its id.
// The resolved handler is required, the rejected handler may be nil.
func (m *Manager[T]) Use(resolved Resolved[T], rejected Rejected[T]) int {
	if resolved == nil {
		panic(fmt.Errorf("resolved handler must be defined"))
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.slots = append(m.slots, slot[T]{state: slotActive, interceptor: Interceptor[T]{Resolved: resolved, Rejected: rejected}})
	return len(m.slots) - 1
}

// Eject removes the interceptor.
// It is no-op if the interceptor has already been removed or if the id is unknown.
func (m *Manager[T]) Eject(id int) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if id < 0 || id >= len(m.slots) || m.slots[id].state == slotRemoved {
		return
	}
	m.slots[id] = slot[T]{state: slotRemoved}
}

// ForEach calls the fn for each active interceptor, in ascending id order.
// The fn is called on a snapshot, so it may register or eject interceptors.
func (m *Manager[T]) ForEach(fn func(interceptor Interceptor[T], id int)) {
	m.lock.RLock()
	snapshot := make([]slot[T], len(m.slots))
	copy(snapshot, m.slots)
	m.lock.RUnlock()

	for id, s := range snapshot {
		if s.state == slotActive {
			fn(s.interceptor, id)
		}
	}
}

// Len returns number of all slots, including removed ones.
// It is the id of the next registered interceptor.
func (m *Manager[T]) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.slots)
}
