// Package cmdqueue buffers mutation requests issued by the consumer side.
// Commands are never executed at issue time: the queue is drained in FIFO
// order immediately before the next tick's computation, and each command's
// deferred result is resolved only after that tick's state write.
package cmdqueue

import (
	"sync"

	"github.com/google/uuid"

	"github.com/orbitlab/simbridge/state"
)

// Kind tags the command union.
type Kind int

const (
	KindSpawn Kind = iota
	KindDespawn
	KindSetBody
	KindSetSnapshot
)

func (k Kind) String() string {
	switch k {
	case KindSpawn:
		return "spawn"
	case KindDespawn:
		return "despawn"
	case KindSetBody:
		return "set_body"
	case KindSetSnapshot:
		return "set_snapshot"
	default:
		return "unknown"
	}
}

// Hash uniquely identifies one queued command.
type Hash string

// Command is one queued mutation plus the slot for its eventual result.
// Exactly one of the deferred fields is non-nil, matching Kind.
type Command struct {
	Kind Kind
	Hash Hash

	// ID is the target body for despawn and set-body commands.
	ID state.ID
	// Patch holds raw field values keyed by layout field name for set-body
	// and set-snapshot commands.
	Patch map[string]float64

	Spawned *Deferred[state.ID]
	Okay    *Deferred[bool]
	Done    *Deferred[struct{}]
}

// Fail resolves the command's deferred as a failure.
func (c *Command) Fail(err error) {
	switch {
	case c.Spawned != nil:
		c.Spawned.resolve(0, err)
	case c.Okay != nil:
		c.Okay.resolve(false, err)
	case c.Done != nil:
		c.Done.resolve(struct{}{}, err)
	}
}

// ResolveSpawn delivers the id assigned by the engine.
func (c *Command) ResolveSpawn(id state.ID) {
	c.Spawned.resolve(id, nil)
}

// ResolveOkay delivers the found/not-found outcome of a despawn or set-body.
func (c *Command) ResolveOkay(ok bool) {
	c.Okay.resolve(ok, nil)
}

// ResolveDone delivers completion of a set-snapshot.
func (c *Command) ResolveDone() {
	c.Done.resolve(struct{}{}, nil)
}

// Queue is the FIFO buffer of pending commands. Issuing never blocks and
// never observably mutates state; the engine drains the queue once per tick.
type Queue struct {
	mux     sync.Mutex
	pending []Command
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// PushSpawn queues a create-entity request.
func (q *Queue) PushSpawn() *Deferred[state.ID] {
	d := newDeferred[state.ID]()
	q.push(Command{Kind: KindSpawn, Hash: newHash(), Spawned: d})
	return d
}

// PushDespawn queues a delete-entity request.
func (q *Queue) PushDespawn(id state.ID) *Deferred[bool] {
	d := newDeferred[bool]()
	q.push(Command{Kind: KindDespawn, Hash: newHash(), ID: id, Okay: d})
	return d
}

// PushSetBody queues a partial per-body update.
func (q *Queue) PushSetBody(id state.ID, patch map[string]float64) *Deferred[bool] {
	d := newDeferred[bool]()
	q.push(Command{Kind: KindSetBody, Hash: newHash(), ID: id, Patch: clonePatch(patch), Okay: d})
	return d
}

// PushSetSnapshot queues a partial snapshot update.
func (q *Queue) PushSetSnapshot(patch map[string]float64) *Deferred[struct{}] {
	d := newDeferred[struct{}]()
	q.push(Command{Kind: KindSetSnapshot, Hash: newHash(), Patch: clonePatch(patch), Done: d})
	return d
}

func (q *Queue) push(c Command) {
	q.mux.Lock()
	defer q.mux.Unlock()
	q.pending = append(q.pending, c)
}

// Len is the number of pending commands.
func (q *Queue) Len() int {
	q.mux.Lock()
	defer q.mux.Unlock()
	return len(q.pending)
}

// Drain returns the pending commands in FIFO order and resets the queue.
// The caller is responsible for resolving every returned command.
func (q *Queue) Drain() []Command {
	q.mux.Lock()
	defer q.mux.Unlock()
	cmds := q.pending
	q.pending = nil
	return cmds
}

// Clear discards all pending commands without executing them. Each pending
// deferred is rejected with ErrDiscarded; leaving them unresolved would leak
// any caller blocked on a result.
func (q *Queue) Clear() int {
	q.mux.Lock()
	cmds := q.pending
	q.pending = nil
	q.mux.Unlock()

	for i := range cmds {
		cmds[i].Fail(ErrDiscarded)
	}
	return len(cmds)
}

func newHash() Hash {
	return Hash(uuid.NewString())
}

func clonePatch(patch map[string]float64) map[string]float64 {
	if patch == nil {
		return nil
	}
	out := make(map[string]float64, len(patch))
	for k, v := range patch {
		out[k] = v
	}
	return out
}
