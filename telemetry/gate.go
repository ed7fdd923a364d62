// Package telemetry implements consent-gated analytics and error tracking.
// Both services hold submissions in a bounded queue until the user consents and
// stay dormant for the session when Do-Not-Track is honored.
package telemetry

import (
	"context"
	"sync"
)

// State is the lifecycle position of a consent-gated service.
type State string

const (
	// StateUninitialized drops every submission. A service stays here for the whole
	// session when Do-Not-Track blocked Initialize.
	StateUninitialized State = "uninitialized"
	// StateAwaitingConsent queues submissions until consent is granted.
	StateAwaitingConsent State = "awaiting_consent"
	// StateLive emits submissions immediately.
	StateLive State = "live"
)

// DefaultMaxQueue bounds the pre-consent queue.
const DefaultMaxQueue = 500

type outcome int

const (
	dropped outcome = iota
	queued
	emitted
)

// gate holds submissions back until consent is granted. emit runs with the gate
// locked, so submissions leave in the order they arrived, and must not re-enter it.
type gate[T any] struct {
	mu       sync.Mutex
	state    State
	queue    []T
	maxQueue int
	evicted  int
	emit     func(context.Context, T)
}

func newGate[T any](maxQueue int, emit func(context.Context, T)) *gate[T] {
	if maxQueue <= 0 {
		maxQueue = DefaultMaxQueue
	}
	return &gate[T]{state: StateUninitialized, maxQueue: maxQueue, emit: emit}
}

// open moves an uninitialized gate to awaiting consent, or straight to live.
// A positive maxQueue replaces the queue bound.
func (g *gate[T]) open(consent bool, maxQueue int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateUninitialized {
		return
	}
	if maxQueue > 0 {
		g.maxQueue = maxQueue
	}
	g.state = StateAwaitingConsent
	if consent {
		g.state = StateLive
	}
}

// grant goes live and flushes the queue in submission order. It returns the
// number of flushed submissions.
func (g *gate[T]) grant(ctx context.Context) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateAwaitingConsent {
		return 0
	}
	g.state = StateLive
	pending := g.queue
	g.queue = nil
	for _, v := range pending {
		g.emit(ctx, v)
	}
	return len(pending)
}

// revoke stops emission and discards whatever was queued.
func (g *gate[T]) revoke() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateUninitialized {
		return 0
	}
	g.state = StateAwaitingConsent
	n := len(g.queue)
	g.queue = nil
	return n
}

func (g *gate[T]) submit(ctx context.Context, v T) outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.state {
	case StateLive:
		g.emit(ctx, v)
		return emitted
	case StateAwaitingConsent:
		if len(g.queue) >= g.maxQueue {
			g.queue = g.queue[1:]
			g.evicted++
		}
		g.queue = append(g.queue, v)
		return queued
	default:
		return dropped
	}
}

// live reports whether submissions are emitted immediately.
func (g *gate[T]) live() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == StateLive
}

func (g *gate[T]) current() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *gate[T]) pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

func (g *gate[T]) evictions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.evicted
}
