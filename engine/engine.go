// Package engine is the native side of the boundary: it owns the
// authoritative simulation state, applies drained commands, advances the
// integrator, and writes the snapshot and per-body regions every tick. The
// force model itself is an opaque collaborator behind the Integrator
// interface.
package engine

import (
	"math/rand"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/orbitlab/simbridge/codec"
	"github.com/orbitlab/simbridge/layout"
	"github.com/orbitlab/simbridge/shared"
	"github.com/orbitlab/simbridge/state"
)

var ErrUnknownField = eris.New("unknown layout field in patch")

// maxID keeps ids exactly representable in a float64 slot.
const maxID = 1 << 31

// Params are the engine's global simulation parameters, the source of the
// snapshot record.
type Params struct {
	Gravity   float64
	TimeScale float64
	Softening float64
	Dt        float64
	Elapsed   float64
	Paused    bool
	Tick      int64
}

// Body is the engine-owned state of one simulated body.
type Body struct {
	ID         state.ID
	Mass       float64
	X          float64
	Y          float64
	VX         float64
	VY         float64
	Radius     float64
	Frozen     bool
	Collisions int64
}

// Integrator advances body state by one step. Implementations must not add
// or remove bodies.
type Integrator interface {
	Advance(params *Params, bodies []*Body)
}

// Drift is the default integrator: plain kinematic drift with no forces.
// Real force models plug in through the Integrator interface.
type Drift struct{}

// Advance moves every unfrozen body along its velocity.
func (Drift) Advance(params *Params, bodies []*Body) {
	step := params.Dt * params.TimeScale
	for _, b := range bodies {
		if b.Frozen {
			continue
		}
		b.X += b.VX * step
		b.Y += b.VY * step
	}
}

// Engine owns the body table and the shared arena.
type Engine struct {
	log   zerolog.Logger
	arena *shared.Arena

	snapLayout *layout.Registry
	bodyLayout *layout.Registry

	params Params
	bodies map[state.ID]*Body
	// order keeps a stable write order so body slots do not shuffle between
	// ticks.
	order []state.ID

	integ Integrator
	rng   *rand.Rand

	// scratch buffers reused every tick.
	snapScratch []float64
	stepScratch []*Body
}

// New builds an engine with the given initial body capacity.
func New(initialCapacity int, integ Integrator, log zerolog.Logger) (*Engine, error) {
	snap := layout.Snapshot()
	body := layout.Body()
	arena, err := shared.NewArena(snap.Stride(), body.Stride(), initialCapacity, log)
	if err != nil {
		return nil, err
	}
	if integ == nil {
		integ = Drift{}
	}
	return &Engine{
		log:        log,
		arena:      arena,
		snapLayout: snap,
		bodyLayout: body,
		params: Params{
			Gravity:   1,
			TimeScale: 1,
			Dt:        1.0 / 60,
		},
		bodies:      map[state.ID]*Body{},
		integ:       integ,
		rng:         rand.New(rand.NewSource(0x5eed)),
		snapScratch: make([]float64, snap.Stride()),
	}, nil
}

// Arena exposes the shared regions for pointer/size publication.
func (e *Engine) Arena() *shared.Arena {
	return e.arena
}

// Params returns the current global parameters.
func (e *Engine) Params() Params {
	return e.params
}

// Len is the number of live bodies.
func (e *Engine) Len() int {
	return len(e.bodies)
}

// Spawn creates a body with a fresh random non-colliding id.
func (e *Engine) Spawn() state.ID {
	var id state.ID
	for {
		id = state.ID(e.rng.Int63n(maxID-1) + 1)
		if _, taken := e.bodies[id]; !taken {
			break
		}
	}
	e.bodies[id] = &Body{ID: id, Mass: 1, Radius: 1}
	e.order = append(e.order, id)
	e.log.Debug().Int64("id", int64(id)).Msg("body spawned")
	return id
}

// Despawn removes a body and reports whether it existed.
func (e *Engine) Despawn(id state.ID) bool {
	if _, ok := e.bodies[id]; !ok {
		return false
	}
	delete(e.bodies, id)
	for i, oid := range e.order {
		if oid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.log.Debug().Int64("id", int64(id)).Msg("body despawned")
	return true
}

// SetBody applies a partial field update, keyed by layout field names, and
// reports whether the body exists. Unknown field names fail the whole patch
// without applying anything.
func (e *Engine) SetBody(id state.ID, patch map[string]float64) (bool, error) {
	b, ok := e.bodies[id]
	if !ok {
		return false, nil
	}
	for name := range patch {
		if name == layout.FieldID {
			return true, eris.Wrap(ErrUnknownField, "id is immutable")
		}
		if _, known := e.bodyLayout.Index(name); !known {
			return true, eris.Wrapf(ErrUnknownField, "body field %q", name)
		}
	}
	for name, v := range patch {
		kind, _ := e.bodyLayout.KindOf(name)
		v = layout.Coerce(kind, v)
		switch name {
		case layout.FieldMass:
			b.Mass = v
		case layout.FieldX:
			b.X = v
		case layout.FieldY:
			b.Y = v
		case layout.FieldVX:
			b.VX = v
		case layout.FieldVY:
			b.VY = v
		case layout.FieldRadius:
			b.Radius = v
		case layout.FieldFrozen:
			b.Frozen = v != 0
		case layout.FieldCollisions:
			b.Collisions = int64(v)
		}
	}
	return true, nil
}

// SetSnapshot applies a partial update to the global parameters. Derived
// fields (tick, bodyCount, region locations) are not settable.
func (e *Engine) SetSnapshot(patch map[string]float64) error {
	for name := range patch {
		switch name {
		case layout.FieldTick, layout.FieldBodyCount, layout.FieldBodiesPtr, layout.FieldBodiesLen:
			return eris.Wrapf(ErrUnknownField, "snapshot field %q is engine-derived", name)
		}
		if _, known := e.snapLayout.Index(name); !known {
			return eris.Wrapf(ErrUnknownField, "snapshot field %q", name)
		}
	}
	for name, v := range patch {
		kind, _ := e.snapLayout.KindOf(name)
		v = layout.Coerce(kind, v)
		switch name {
		case layout.FieldGravity:
			e.params.Gravity = v
		case layout.FieldTimeScale:
			e.params.TimeScale = v
		case layout.FieldSoftening:
			e.params.Softening = v
		case layout.FieldDt:
			e.params.Dt = v
		case layout.FieldElapsed:
			e.params.Elapsed = v
		case layout.FieldPaused:
			e.params.Paused = v != 0
		}
	}
	return nil
}

// Step advances the simulation one tick (unless syncOnly or paused) and
// always rewrites the shared regions.
func (e *Engine) Step(syncOnly bool) error {
	if !syncOnly && !e.params.Paused {
		e.stepScratch = e.stepScratch[:0]
		for _, id := range e.order {
			e.stepScratch = append(e.stepScratch, e.bodies[id])
		}
		e.integ.Advance(&e.params, e.stepScratch)
		e.params.Elapsed += e.params.Dt * e.params.TimeScale
	}
	e.params.Tick++
	return e.write()
}

// write publishes the current state into the arena, growing the body region
// first when needed.
func (e *Engine) write() error {
	if err := e.arena.EnsureCapacity(len(e.order)); err != nil {
		return err
	}

	bl := e.bodyLayout
	for i, id := range e.order {
		b := e.bodies[id]
		row := e.arena.StagingRow(i)
		row[bl.MustIndex(layout.FieldID)] = float64(b.ID)
		row[bl.MustIndex(layout.FieldMass)] = b.Mass
		row[bl.MustIndex(layout.FieldX)] = b.X
		row[bl.MustIndex(layout.FieldY)] = b.Y
		row[bl.MustIndex(layout.FieldVX)] = b.VX
		row[bl.MustIndex(layout.FieldVY)] = b.VY
		row[bl.MustIndex(layout.FieldRadius)] = b.Radius
		row[bl.MustIndex(layout.FieldFrozen)] = flagSlot(b.Frozen)
		row[bl.MustIndex(layout.FieldCollisions)] = float64(b.Collisions)
	}
	if err := e.arena.CommitBodies(len(e.order)); err != nil {
		return err
	}

	bodiesPtr, bodiesLen := e.arena.BodiesRegion()
	snap := e.snapScratch
	snap[e.snapLayout.MustIndex(layout.FieldGravity)] = e.params.Gravity
	snap[e.snapLayout.MustIndex(layout.FieldTimeScale)] = e.params.TimeScale
	snap[e.snapLayout.MustIndex(layout.FieldSoftening)] = e.params.Softening
	snap[e.snapLayout.MustIndex(layout.FieldDt)] = e.params.Dt
	snap[e.snapLayout.MustIndex(layout.FieldElapsed)] = e.params.Elapsed
	snap[e.snapLayout.MustIndex(layout.FieldPaused)] = flagSlot(e.params.Paused)
	snap[e.snapLayout.MustIndex(layout.FieldTick)] = float64(e.params.Tick)
	snap[e.snapLayout.MustIndex(layout.FieldBodyCount)] = float64(len(e.order))
	snap[e.snapLayout.MustIndex(layout.FieldBodiesPtr)] = float64(bodiesPtr)
	snap[e.snapLayout.MustIndex(layout.FieldBodiesLen)] = float64(bodiesLen)
	return e.arena.WriteSnapshot(snap)
}

// Export captures the base state as a codec document.
func (e *Engine) Export() *codec.State {
	doc := &codec.State{
		Sim: codec.SimParams{
			Gravity:   e.params.Gravity,
			TimeScale: e.params.TimeScale,
			Softening: e.params.Softening,
			Dt:        e.params.Dt,
			Elapsed:   e.params.Elapsed,
			Paused:    e.params.Paused,
		},
		Bodies: make([]codec.BodyParams, 0, len(e.order)),
	}
	for _, id := range e.order {
		b := e.bodies[id]
		doc.Bodies = append(doc.Bodies, codec.BodyParams{
			ID:         int64(b.ID),
			Mass:       b.Mass,
			X:          b.X,
			Y:          b.Y,
			VX:         b.VX,
			VY:         b.VY,
			Radius:     b.Radius,
			Frozen:     b.Frozen,
			Collisions: b.Collisions,
		})
	}
	return doc
}

// Import replaces the whole body table and parameters with the document's
// contents. The tick counter survives; elapsed time comes from the document.
func (e *Engine) Import(doc *codec.State) error {
	seen := make(map[int64]struct{}, len(doc.Bodies))
	for _, b := range doc.Bodies {
		if b.ID <= 0 || b.ID >= maxID {
			return eris.Errorf("imported body id %d out of range", b.ID)
		}
		if _, dup := seen[b.ID]; dup {
			return eris.Errorf("imported body id %d duplicated", b.ID)
		}
		seen[b.ID] = struct{}{}
	}

	e.params.Gravity = doc.Sim.Gravity
	e.params.TimeScale = doc.Sim.TimeScale
	e.params.Softening = doc.Sim.Softening
	e.params.Dt = doc.Sim.Dt
	e.params.Elapsed = doc.Sim.Elapsed
	e.params.Paused = doc.Sim.Paused

	e.bodies = make(map[state.ID]*Body, len(doc.Bodies))
	e.order = e.order[:0]
	for _, b := range doc.Bodies {
		id := state.ID(b.ID)
		e.bodies[id] = &Body{
			ID:         id,
			Mass:       b.Mass,
			X:          b.X,
			Y:          b.Y,
			VX:         b.VX,
			VY:         b.VY,
			Radius:     b.Radius,
			Frozen:     b.Frozen,
			Collisions: b.Collisions,
		}
		e.order = append(e.order, id)
	}
	e.log.Info().Int("bodies", len(e.order)).Msg("state imported")
	return nil
}

// Release frees the shared regions. Safe to call more than once.
func (e *Engine) Release() {
	e.arena.Release()
}

func flagSlot(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
