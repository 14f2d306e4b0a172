// Package engine defines the dual-mode concurrency engine abstraction
// (spec.md §4.12): a pluggable interface so task/channel/rwlock primitives
// can be backed by real OS threads in production or a cooperative scheduler
// in test mode, without the rest of the runtime caring which.
//
// Adapted from the teacher's runtime/agent/engine.Engine: the same
// pluggable-backend shape (RegisterWorkflow/StartWorkflow there,
// Spawn/NewChannel/NewRWLock here), generalized from durable workflow
// execution to the spawn/channel/rwlock primitives spec.md §4.12 describes.
package engine

import (
	"context"
	"errors"
)

// Sentinel errors matching spec.md §4.12's channel contract and §5's
// cancellation model. Every adapter returns these exact values so caller
// code (and transform/spawn-desugared catch sites, once codegen targets a
// real backend) can compare with errors.Is.
var (
	ErrChannelClosed  = errors.New("pluto: channel closed")
	ErrChannelFull    = errors.New("pluto: channel full")
	ErrChannelEmpty   = errors.New("pluto: channel empty")
	ErrTaskCancelled  = errors.New("pluto: task cancelled")
	ErrDeadlock       = errors.New("pluto: deadlock detected")
	ErrLivelock       = errors.New("pluto: livelock detected")
)

// Engine abstracts task spawning, channel creation, and rwlock allocation
// so the production (pthread-mapped) and test (cooperative fiber) adapters
// can share every other runtime concern (spec.md §4.12).
type Engine interface {
	// Spawn starts fn running and returns a handle to it
	// (__pluto_task_spawn). fn receives a context that is cancelled when the
	// returned Task is cancelled.
	Spawn(ctx context.Context, fn func(context.Context) (any, error)) Task

	// NewChannel allocates a channel handle of the given buffer capacity
	// (spec.md §4.12, "Channel contract"). capacity <= 0 defaults to 1.
	NewChannel(capacity int) Channel

	// NewRWLock allocates a reader/writer lock for a concurrently-accessed
	// DI singleton (spec.md §4.12, "Rwlocks").
	NewRWLock() RWLock

	// Select blocks until exactly one of cases becomes ready and performs
	// it, returning the index of the case that fired (spec.md §4.12,
	// "select polls all branches in a randomized order").
	Select(ctx context.Context, cases []SelectCase) (int, error)
}

// Task is the handle returned by Spawn (__pluto_task_spawn /
// __pluto_task_get, spec.md §4.10's 7-slot task handle layout collapsed to
// its observable behavior).
type Task interface {
	// Get blocks until the task completes, returning its result or the
	// error it raised (or ErrTaskCancelled if Cancel fired first).
	Get(ctx context.Context) (any, error)
	// Cancel requests cooperative cancellation (spec.md §5): it sets a flag
	// the task observes at its next checkpoint, it does not interrupt it.
	Cancel()
	// Cancelled reports whether Cancel has been called.
	Cancelled() bool
}

// Channel is the handle returned by NewChannel / `chan<T>(capacity)`
// (spec.md §4.12, "Channel contract").
type Channel interface {
	Send(ctx context.Context, v any) error
	Recv(ctx context.Context) (any, error)
	TrySend(v any) error
	TryRecv() (any, error)
	// Close is idempotent and wakes every blocked waiter.
	Close()
}

// RWLock is the reader/writer lock DI wiring allocates for every
// concurrently-accessed class (spec.md §4.12, "Rwlocks").
type RWLock interface {
	RLock()
	RUnlock()
	Lock()
	Unlock()
}

// SelectCase is one branch of a `select` statement: exactly one of Send or
// Recv must be set to distinguish a send-case from a recv-case.
type SelectCase struct {
	Channel Channel
	Send    *any // non-nil for a send case, carrying the value to send
	Recv    bool // true for a recv case

	// OnReady receives the received value (for a recv case) once this case
	// is chosen.
	OnReady func(v any, err error)
}
