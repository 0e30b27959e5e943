// Package store holds the client-resident reactive stores: the identity
// store and the live collection cache that sits between the local database
// and an arbitrary number of UI consumers.
package store

import "sync"

// SubscribeFunc creates the single underlying live subscription for a cache.
// It must call deliver for the initial materialization and for every
// subsequent change, and return a cancel function that tears the
// subscription down.
type SubscribeFunc[T any] func(deliver func(items []T, err error)) (cancel func())

// Cache keeps the most recent materialized result of one live query and
// fans change notifications out to any number of subscribers.
//
// The underlying subscription exists exactly while the subscriber count is
// above zero: the first Subscribe creates it, the last unsubscribe disposes
// it synchronously and resets the loaded state so a later resubscription
// fetches fresh data.
type Cache[T any] struct {
	subscribe SubscribeFunc[T]

	mu        sync.Mutex
	snapshot  []T
	loaded    bool
	refs      int
	cancel    func()
	listeners map[int]func()
	nextID    int
}

// NewCache creates a cold cache around subscribe.
func NewCache[T any](subscribe SubscribeFunc[T]) *Cache[T] {
	return &Cache[T]{
		subscribe: subscribe,
		listeners: make(map[int]func()),
	}
}

// Subscribe registers listener for change notifications and returns an
// idempotent unsubscribe. The first subscriber instantiates the underlying
// live query, so listener may already be notified before Subscribe returns.
func (c *Cache[T]) Subscribe(listener func()) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
	c.refs++
	first := c.refs == 1
	c.mu.Unlock()

	if first {
		cancel := c.subscribe(c.deliver)
		c.mu.Lock()
		if c.refs == 0 {
			// Everyone left while the subscription was being created.
			c.mu.Unlock()
			cancel()
		} else {
			c.cancel = cancel
			c.mu.Unlock()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { c.unsubscribe(id) })
	}
}

func (c *Cache[T]) unsubscribe(id int) {
	c.mu.Lock()
	delete(c.listeners, id)
	c.refs--
	var cancel func()
	if c.refs == 0 {
		cancel = c.cancel
		c.cancel = nil
		c.snapshot = nil
		c.loaded = false
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Snapshot returns the last materialized result. Before the first load it
// returns an empty slice, never nil, so consumers can render unconditionally.
func (c *Cache[T]) Snapshot() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return []T{}
	}
	return c.snapshot
}

// Loading reports true until the first successful materialization since the
// cache last went cold.
func (c *Cache[T]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.loaded
}

// SubscriberCount returns the number of registered listeners.
func (c *Cache[T]) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs
}

// deliver replaces the snapshot and notifies every listener exactly once.
// A failed read degrades to an empty loaded snapshot rather than wedging
// consumers in the loading state.
func (c *Cache[T]) deliver(items []T, err error) {
	c.mu.Lock()
	if c.refs == 0 {
		// Late delivery after teardown.
		c.mu.Unlock()
		return
	}
	if err != nil || items == nil {
		items = []T{}
	}
	c.snapshot = items
	c.loaded = true

	// Stable copy: listeners added or removed during notification must be
	// neither skipped nor double-counted for this event.
	cbs := make([]func(), 0, len(c.listeners))
	for _, cb := range c.listeners {
		cbs = append(cbs, cb)
	}
	c.mu.Unlock()

	for _, cb := range cbs {
		cb()
	}
}
