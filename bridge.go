// Package simbridge moves simulation state across the engine/consumer
// boundary once per tick and publishes precise change-sets so consumers
// never rescan the full state. The Bridge is the explicit context object
// tying both sides together; there is no process-wide state.
package simbridge

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/orbitlab/simbridge/archive"
	"github.com/orbitlab/simbridge/cmdqueue"
	"github.com/orbitlab/simbridge/codec"
	"github.com/orbitlab/simbridge/compose"
	"github.com/orbitlab/simbridge/engine"
	"github.com/orbitlab/simbridge/layout"
	"github.com/orbitlab/simbridge/meta"
	"github.com/orbitlab/simbridge/ringlog"
	"github.com/orbitlab/simbridge/state"
)

var (
	ErrUnknownLayoutKind = eris.New("unknown layout kind")
	ErrNoArchive         = eris.New("no archive configured")
)

// LayoutKind selects which field ordering Layout returns.
type LayoutKind string

const (
	LayoutSnapshot LayoutKind = "snapshot"
	LayoutEntity   LayoutKind = "entity"
)

// Bridge owns one engine, one command queue and the consumer-side decode
// pipeline. Everything runs synchronously inside Tick; nothing here is safe
// for concurrent use except issuing commands, which only appends to the
// queue.
type Bridge struct {
	log zerolog.Logger

	engine   *engine.Engine
	queue    *cmdqueue.Queue
	reader   *state.Reader
	store    *meta.Store
	composer *compose.Composer
	ring     *ringlog.Log
	arch     *archive.Archive
}

// New builds a bridge from cfg. Construction errors (invalid capacity,
// invalid log capacity) are fatal.
func New(cfg BridgeConfig, opts ...Option) (*Bridge, error) {
	b := &Bridge{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(b)
	}

	ring, err := ringlog.New(cfg.LogCapacity)
	if err != nil {
		return nil, err
	}
	b.ring = ring

	if b.engine == nil {
		eng, err := engine.New(cfg.InitialCapacity, nil, b.log)
		if err != nil {
			return nil, err
		}
		b.engine = eng
	}

	b.queue = cmdqueue.NewQueue()
	b.reader = state.NewReader(b.log)
	b.store = meta.NewStore()
	b.composer = compose.NewComposer(cfg.DebugValidation, b.log)

	if b.arch == nil && cfg.RedisAddress != "" {
		b.arch = archive.New(archive.Options{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			Namespace: cfg.Namespace,
		}, b.log)
	}

	b.log.Info().
		Int("capacity", cfg.InitialCapacity).
		Bool("debug_validation", cfg.DebugValidation).
		Msg("bridge constructed")
	return b, nil
}

// Layout returns the ordered field names for the requested record kind.
func (b *Bridge) Layout(kind LayoutKind) ([]string, error) {
	switch kind {
	case LayoutSnapshot:
		return layout.Snapshot().Names(), nil
	case LayoutEntity:
		return layout.Body().Names(), nil
	default:
		return nil, eris.Wrapf(ErrUnknownLayoutKind, "%q", kind)
	}
}

// PointerAndSize returns the current (pointer, size) pairs of both regions.
func (b *Bridge) PointerAndSize() (snapPtr uintptr, snapLen int, bodyPtr uintptr, bodyLen int) {
	snapPtr, snapLen = b.engine.Arena().SnapshotRegion()
	bodyPtr, bodyLen = b.engine.Arena().BodiesRegion()
	return snapPtr, snapLen, bodyPtr, bodyLen
}

// CreateEntity queues a spawn. The returned deferred resolves with the new
// id after the next tick's state write.
func (b *Bridge) CreateEntity() *cmdqueue.Deferred[state.ID] {
	return b.queue.PushSpawn()
}

// DeleteEntity queues a despawn. The deferred resolves false when the id did
// not exist.
func (b *Bridge) DeleteEntity(id state.ID) *cmdqueue.Deferred[bool] {
	return b.queue.PushDespawn(id)
}

// UpdateEntity queues a partial per-body update keyed by layout field names.
func (b *Bridge) UpdateEntity(id state.ID, patch map[string]float64) *cmdqueue.Deferred[bool] {
	return b.queue.PushSetBody(id, patch)
}

// UpdateSnapshot queues a partial update of the global parameters.
func (b *Bridge) UpdateSnapshot(patch map[string]float64) *cmdqueue.Deferred[struct{}] {
	return b.queue.PushSetSnapshot(patch)
}

// Tick runs one full step: drain and apply queued commands, advance the
// engine (unless syncOnly), rewrite the shared regions, refresh the decoded
// state and diffs, sync metadata, publish the frame, and only then resolve
// the commands' deferred results.
func (b *Bridge) Tick(syncOnly bool) error {
	cmds := b.queue.Drain()
	resolvers := make([]func(), len(cmds))
	for i := range cmds {
		resolvers[i] = b.applyCommand(&cmds[i])
	}
	// A failed tick still resolves every drained command; anything else
	// leaves callers blocked in Wait forever.
	failBatch := func(err error) {
		for i := range cmds {
			cmds[i].Fail(err)
		}
	}

	if err := b.engine.Step(syncOnly); err != nil {
		err = eris.Wrap(err, "engine step")
		failBatch(err)
		return err
	}

	snapPtr, snapLen := b.engine.Arena().SnapshotRegion()
	if err := b.reader.Refresh(snapPtr, snapLen); err != nil {
		err = eris.Wrap(err, "state refresh")
		failBatch(err)
		return err
	}

	diff := b.reader.Diff()
	b.store.SyncDiff(diff.Created, diff.Deleted)

	if err := b.composer.Publish(b.reader, b.store); err != nil {
		err = eris.Wrap(err, "frame publish")
		failBatch(err)
		return err
	}

	// The one-tick latency contract: results become observable only after
	// the refreshed state is in place.
	for _, resolve := range resolvers {
		resolve()
	}

	frame := b.composer.Frame()
	b.ring.Append(fmt.Sprintf(
		"tick %d: %d bodies, %d commands, +%d ~%d -%d",
		b.reader.Snapshot().Tick, b.engine.Len(), len(cmds),
		len(frame.Created), len(frame.Updated), len(frame.Deleted),
	))
	return nil
}

// applyCommand mutates engine state and returns the resolver to run after
// the tick's write. A command that fails or panics resolves its own deferred
// as a failure without stopping the rest of the batch.
func (b *Bridge) applyCommand(c *cmdqueue.Command) (resolve func()) {
	defer func() {
		if r := recover(); r != nil {
			err := eris.Errorf("command %s panicked: %v", c.Kind, r)
			b.log.Error().Err(err).Str("hash", string(c.Hash)).Msg("command failed")
			resolve = func() { c.Fail(err) }
		}
	}()

	switch c.Kind {
	case cmdqueue.KindSpawn:
		id := b.engine.Spawn()
		return func() { c.ResolveSpawn(id) }
	case cmdqueue.KindDespawn:
		ok := b.engine.Despawn(c.ID)
		return func() { c.ResolveOkay(ok) }
	case cmdqueue.KindSetBody:
		ok, err := b.engine.SetBody(c.ID, c.Patch)
		if err != nil {
			return func() { c.Fail(err) }
		}
		return func() { c.ResolveOkay(ok) }
	case cmdqueue.KindSetSnapshot:
		if err := b.engine.SetSnapshot(c.Patch); err != nil {
			return func() { c.Fail(err) }
		}
		return func() { c.ResolveDone() }
	default:
		err := eris.Errorf("unknown command kind %d", c.Kind)
		return func() { c.Fail(err) }
	}
}

// ExportState serializes the engine's base state.
func (b *Bridge) ExportState() (string, error) {
	return codec.Encode(b.engine.Export())
}

// ImportState replaces the engine state with the decoded document. Pending
// commands are discarded (their deferreds reject with
// cmdqueue.ErrDiscarded), cached views are invalidated, and the caller is
// expected to run a sync-only tick to republish. A JSON null document is a
// no-op.
func (b *Bridge) ImportState(raw string) error {
	doc, err := codec.Decode(raw)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	if n := b.queue.Clear(); n > 0 {
		b.log.Warn().Int("discarded", n).Msg("pending commands discarded by state import")
	}
	if err := b.engine.Import(doc); err != nil {
		return err
	}
	b.reader.Invalidate()
	b.ring.Append(fmt.Sprintf("state imported: %d bodies", len(doc.Bodies)))
	return nil
}

// SaveState exports the current state into the archive slot.
func (b *Bridge) SaveState(ctx context.Context, slot string) error {
	if b.arch == nil {
		return ErrNoArchive
	}
	doc, err := b.ExportState()
	if err != nil {
		return err
	}
	return b.arch.Save(ctx, slot, doc)
}

// LoadState imports the state stored in the archive slot.
func (b *Bridge) LoadState(ctx context.Context, slot string) error {
	if b.arch == nil {
		return ErrNoArchive
	}
	doc, err := b.arch.Load(ctx, slot)
	if err != nil {
		return err
	}
	return b.ImportState(doc)
}

// Snapshot returns the stable decoded snapshot record.
func (b *Bridge) Snapshot() *state.Snapshot {
	return b.reader.Snapshot()
}

// Body returns the stable decoded record for id.
func (b *Bridge) Body(id state.ID) (*state.Body, bool) {
	return b.reader.Body(id)
}

// View returns the combined view for id.
func (b *Bridge) View(id state.ID) (*compose.CombinedView, bool) {
	return b.composer.View(id)
}

// Frame returns the change-sets published by the most recent Tick.
func (b *Bridge) Frame() *compose.Frame {
	return b.composer.Frame()
}

// Meta returns the application metadata store.
func (b *Bridge) Meta() *meta.Store {
	return b.store
}

// RecentLog returns up to n ring log entries, oldest first.
func (b *Bridge) RecentLog(n int) []string {
	return b.ring.Recent(n)
}

// Close discards pending commands and releases the shared regions. Safe to
// call more than once.
func (b *Bridge) Close() {
	b.queue.Clear()
	b.engine.Release()
}
