package suiteprefs

import (
	"fmt"
	"sync"
)

// Registry is an ordered set of change listeners for one preference.
// Every Subscribe call gets its own handle, so the same function subscribed twice
// is two independent subscriptions.
type Registry[T any] struct {
	mu     sync.Mutex
	name   string
	logger Logger
	nextID uint64
	order  []uint64
	subs   map[uint64]func(T)
}

// NewRegistry creates an empty Registry. name tags listener failures in the log.
func NewRegistry[T any](name string, logger Logger) *Registry[T] {
	if logger == nil {
		logger = NewDefaultLogger()
	}
	return &Registry[T]{
		name:   name,
		logger: logger,
		subs:   make(map[uint64]func(T)),
	}
}

// Subscribe registers fn and returns its unsubscribe function.
// Unsubscribing is idempotent and takes effect for all future notifications.
func (r *Registry[T]) Subscribe(fn func(T)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.subs[id] = fn
	r.order = append(r.order, id)

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
		// order is compacted lazily; stale ids are skipped during Notify.
		if len(r.order) > 2*len(r.subs)+16 {
			r.compact()
		}
	}
}

// Len returns the number of live subscriptions.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Notify invokes every live listener once, synchronously, in subscription order.
// The listener set is snapshotted first: listeners added during the round are not
// called, and listeners removed during the round are skipped if not yet reached.
// A panicking listener is logged and does not stop the round.
func (r *Registry[T]) Notify(v T) {
	r.mu.Lock()
	snapshot := make([]uint64, 0, len(r.subs))
	for _, id := range r.order {
		if _, ok := r.subs[id]; ok {
			snapshot = append(snapshot, id)
		}
	}
	r.mu.Unlock()

	for _, id := range snapshot {
		r.mu.Lock()
		fn, ok := r.subs[id]
		r.mu.Unlock()
		if !ok {
			continue
		}
		r.invoke(id, fn, v)
	}
}

func (r *Registry[T]) invoke(id uint64, fn func(T), v T) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Listener panicked", "registry", r.name, "subscription", id, "panic", fmt.Sprint(rec))
		}
	}()
	fn(v)
}

func (r *Registry[T]) compact() {
	live := r.order[:0]
	for _, id := range r.order {
		if _, ok := r.subs[id]; ok {
			live = append(live, id)
		}
	}
	r.order = live
}
