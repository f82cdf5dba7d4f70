package cmdqueue

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrDiscarded is the rejection error delivered to every pending deferred
// when the queue is cleared (e.g. on a full state import). Pending commands
// are never silently dropped.
var ErrDiscarded = eris.New("command discarded before execution")

type outcome[T any] struct {
	value T
	err   error
}

// Deferred is the one-shot result slot of a queued command. It is resolved
// exactly once, strictly after the tick that applied the command has written
// its state, so a caller receiving the result always sees the effect already
// reflected in the refreshed state.
type Deferred[T any] struct {
	ch       chan outcome[T]
	sent     bool
	done     bool
	resolved outcome[T]
}

func newDeferred[T any]() *Deferred[T] {
	return &Deferred[T]{ch: make(chan outcome[T], 1)}
}

// resolve delivers the result. Later calls are no-ops; resolution happens
// exactly once. The channel is buffered so delivery never blocks the tick.
func (d *Deferred[T]) resolve(v T, err error) {
	if d.sent {
		return
	}
	d.sent = true
	d.ch <- outcome[T]{value: v, err: err}
}

// Wait blocks until the result is delivered or ctx is done. Wait may be
// called repeatedly; the first delivery is cached.
func (d *Deferred[T]) Wait(ctx context.Context) (T, error) {
	if d.done {
		return d.resolved.value, d.resolved.err
	}
	select {
	case out := <-d.ch:
		d.done = true
		d.resolved = out
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		return zero, eris.Wrap(ctx.Err(), "waiting for command result")
	}
}

// Ready reports whether a result has been delivered, without blocking.
func (d *Deferred[T]) Ready() bool {
	if d.done {
		return true
	}
	select {
	case out := <-d.ch:
		d.done = true
		d.resolved = out
		return true
	default:
		return false
	}
}
