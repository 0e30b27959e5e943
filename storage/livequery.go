package storage

import (
	"context"
	"sync"

	"github.com/asifanwar1/taskothon/domain"
)

// QueryFunc materializes a live query's result.
type QueryFunc func(ctx context.Context) ([]domain.Task, error)

// DeliverFunc receives each fresh materialization. A failed read is
// delivered with its error so the consumer can degrade rather than hang.
type DeliverFunc func(tasks []domain.Task, err error)

// LiveQuery is the handle for one registered live query. Close is
// synchronous and idempotent.
type LiveQuery struct {
	broker  *broker
	query   QueryFunc
	deliver DeliverFunc

	mu     sync.Mutex
	closed bool
}

// broker fans one write notification out to every registered live query.
// Dispatch is serialized: two writes never re-materialize the same query
// concurrently, and results arrive in write order.
type broker struct {
	regMu   sync.Mutex
	handles map[*LiveQuery]struct{}

	// dispatchMu serializes full notification passes. Deliveries must not
	// write back to the database synchronously.
	dispatchMu sync.Mutex
}

func newBroker() *broker {
	return &broker{handles: make(map[*LiveQuery]struct{})}
}

// SubscribeToChanges registers query and re-runs it after every write,
// delivering each fresh result. The first materialization happens
// synchronously before SubscribeToChanges returns.
func (d *DB) SubscribeToChanges(query QueryFunc, deliver DeliverFunc) *LiveQuery {
	h := &LiveQuery{broker: d.broker, query: query, deliver: deliver}

	d.broker.regMu.Lock()
	d.broker.handles[h] = struct{}{}
	d.broker.regMu.Unlock()

	d.broker.dispatchMu.Lock()
	h.refresh()
	d.broker.dispatchMu.Unlock()
	return h
}

// Close unregisters the live query. No deliveries happen after Close
// returns; calling it again is a no-op.
func (h *LiveQuery) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	h.broker.regMu.Lock()
	delete(h.broker.handles, h)
	h.broker.regMu.Unlock()
}

// Refresh re-materializes the query outside the write path, e.g. when the
// authenticated identity changes without any table write.
func (h *LiveQuery) Refresh() {
	h.broker.dispatchMu.Lock()
	h.refresh()
	h.broker.dispatchMu.Unlock()
}

func (h *LiveQuery) refresh() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	tasks, err := h.query(context.Background())
	h.deliver(tasks, err)
}

func (b *broker) notify() {
	b.regMu.Lock()
	handles := make([]*LiveQuery, 0, len(b.handles))
	for h := range b.handles {
		handles = append(handles, h)
	}
	b.regMu.Unlock()

	b.dispatchMu.Lock()
	defer b.dispatchMu.Unlock()
	for _, h := range handles {
		h.refresh()
	}
}
