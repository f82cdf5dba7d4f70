package state

import (
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/orbitlab/simbridge/layout"
	"github.com/orbitlab/simbridge/shared"
)

var (
	ErrBodyRegionTooSmall = eris.New("body region smaller than decoded body count")
	ErrNonPositiveID      = eris.New("decoded body id is not positive")
)

// snapOffsets and bodyOffsets are the slot indices resolved once at
// construction from the layout registry. Nothing in the decode path looks up
// a field name.
type snapOffsets struct {
	gravity, timeScale, softening, dt, elapsed    int
	paused, tick, bodyCount, bodiesPtr, bodiesLen int
}

type bodyOffsets struct {
	id, mass, x, y, vx, vy, radius, frozen, collisions int
}

// Reader decodes the snapshot and body regions and maintains the id-stable
// diff across refreshes.
type Reader struct {
	log zerolog.Logger

	snapLayout *layout.Registry
	bodyLayout *layout.Registry
	so         snapOffsets
	bo         bodyOffsets

	snapView *shared.ViewProvider
	bodyView *shared.ViewProvider

	snapshot *Snapshot
	bodies   map[ID]*Body

	// current and previous are swapped, not reallocated, each refresh.
	current  IDSet
	previous IDSet

	diff Diff
}

// NewReader builds a reader bound to the shared layout registries.
func NewReader(log zerolog.Logger) *Reader {
	snap := layout.Snapshot()
	body := layout.Body()
	return &Reader{
		log:        log,
		snapLayout: snap,
		bodyLayout: body,
		so: snapOffsets{
			gravity:   snap.MustIndex(layout.FieldGravity),
			timeScale: snap.MustIndex(layout.FieldTimeScale),
			softening: snap.MustIndex(layout.FieldSoftening),
			dt:        snap.MustIndex(layout.FieldDt),
			elapsed:   snap.MustIndex(layout.FieldElapsed),
			paused:    snap.MustIndex(layout.FieldPaused),
			tick:      snap.MustIndex(layout.FieldTick),
			bodyCount: snap.MustIndex(layout.FieldBodyCount),
			bodiesPtr: snap.MustIndex(layout.FieldBodiesPtr),
			bodiesLen: snap.MustIndex(layout.FieldBodiesLen),
		},
		bo: bodyOffsets{
			id:         body.MustIndex(layout.FieldID),
			mass:       body.MustIndex(layout.FieldMass),
			x:          body.MustIndex(layout.FieldX),
			y:          body.MustIndex(layout.FieldY),
			vx:         body.MustIndex(layout.FieldVX),
			vy:         body.MustIndex(layout.FieldVY),
			radius:     body.MustIndex(layout.FieldRadius),
			frozen:     body.MustIndex(layout.FieldFrozen),
			collisions: body.MustIndex(layout.FieldCollisions),
		},
		snapView: shared.NewViewProvider(),
		bodyView: shared.NewViewProvider(),
		snapshot: &Snapshot{},
		bodies:   map[ID]*Body{},
		current:  IDSet{},
		previous: IDSet{},
		diff:     newDiff(),
	}
}

// Snapshot returns the stable snapshot record. The same pointer is valid for
// the reader's whole lifetime; Refresh mutates it in place.
func (r *Reader) Snapshot() *Snapshot {
	return r.snapshot
}

// Body returns the stable record for id.
func (r *Reader) Body(id ID) (*Body, bool) {
	b, ok := r.bodies[id]
	return b, ok
}

// Bodies returns the live record map keyed by id. Callers must treat it as
// read-only.
func (r *Reader) Bodies() map[ID]*Body {
	return r.bodies
}

// Diff returns the change-set computed by the most recent Refresh. The
// returned sets are reused across refreshes; callers must consume them
// before the next tick.
func (r *Reader) Diff() *Diff {
	return &r.diff
}

// Invalidate marks both cached views detached. Called after any
// native-triggered state replacement.
func (r *Reader) Invalidate() {
	r.snapView.Invalidate()
	r.bodyView.Invalidate()
}

// Refresh decodes the regions published at (snapPtr, snapSize) and computes
// the diff against the previous refresh.
func (r *Reader) Refresh(snapPtr uintptr, snapSize int) error {
	snap, err := r.snapView.Acquire(snapPtr, snapSize)
	if err != nil {
		return eris.Wrap(err, "acquire snapshot view")
	}

	r.diff.clear()
	r.decodeSnapshot(snap)

	count := r.snapshot.BodyCount
	var bodies []float64
	if count > 0 || r.snapshot.BodiesLen > 0 {
		bodies, err = r.bodyView.Acquire(r.snapshot.BodiesPtr, r.snapshot.BodiesLen)
		if err != nil {
			return eris.Wrap(err, "acquire body view")
		}
	}
	stride := r.bodyLayout.Stride()
	if count*stride > len(bodies) {
		return eris.Wrapf(ErrBodyRegionTooSmall, "%d bodies need %d slots, region has %d",
			count, count*stride, len(bodies))
	}

	return r.diffBodies(bodies, count, stride)
}

func (r *Reader) decodeSnapshot(snap []float64) {
	s := r.snapshot
	set := func(key string, dst *float64, raw float64) {
		if *dst != raw {
			*dst = raw
			r.diff.Sim[key] = struct{}{}
		}
	}

	// Comparison happens after coercion so encoding jitter in flag and int
	// slots never reports a spurious change.
	set(layout.FieldGravity, &s.Gravity, snap[r.so.gravity])
	set(layout.FieldTimeScale, &s.TimeScale, snap[r.so.timeScale])
	set(layout.FieldSoftening, &s.Softening, snap[r.so.softening])
	set(layout.FieldDt, &s.Dt, snap[r.so.dt])
	set(layout.FieldElapsed, &s.Elapsed, snap[r.so.elapsed])

	if paused := flagOf(snap[r.so.paused]); paused != s.Paused {
		s.Paused = paused
		r.diff.Sim[layout.FieldPaused] = struct{}{}
	}
	if tick := intOf(snap[r.so.tick]); tick != s.Tick {
		s.Tick = tick
		r.diff.Sim[layout.FieldTick] = struct{}{}
	}
	if count := int(intOf(snap[r.so.bodyCount])); count != s.BodyCount {
		s.BodyCount = count
		r.diff.Sim[layout.FieldBodyCount] = struct{}{}
	}

	// Region location fields are plumbing, not simulation parameters: they
	// update in place but never appear in the sim diff.
	s.BodiesPtr = uintptr(intOf(snap[r.so.bodiesPtr]))
	s.BodiesLen = int(intOf(snap[r.so.bodiesLen]))
}

func (r *Reader) diffBodies(bodies []float64, count, stride int) error {
	// Swap the id sets and clear the new current; allocation-free after the
	// first few ticks.
	r.current, r.previous = r.previous, r.current
	clear(r.current)

	for i := 0; i < count; i++ {
		row := bodies[i*stride : (i+1)*stride]
		id := ID(intOf(row[r.bo.id]))
		if id <= 0 {
			return eris.Wrapf(ErrNonPositiveID, "slot %d decoded id %d", i, id)
		}
		r.current.Add(id)

		b, ok := r.bodies[id]
		if !ok {
			b = &Body{ID: id}
			r.copyRow(b, row)
			r.bodies[id] = b
			r.diff.Created.Add(id)
			continue
		}
		if r.copyRow(b, row) {
			r.diff.Updated.Add(id)
		}
	}

	for id := range r.previous {
		if r.current.Has(id) {
			continue
		}
		delete(r.bodies, id)
		r.diff.Deleted.Add(id)
	}

	if len(r.diff.Created) > 0 || len(r.diff.Deleted) > 0 {
		r.log.Debug().
			Int("created", len(r.diff.Created)).
			Int("updated", len(r.diff.Updated)).
			Int("deleted", len(r.diff.Deleted)).
			Msg("body diff")
	}
	return nil
}

// copyRow copies every non-id field of row into b in place, applying the
// per-kind coercion, and reports whether any field changed.
func (r *Reader) copyRow(b *Body, row []float64) bool {
	changed := false
	setF := func(dst *float64, raw float64) {
		if *dst != raw {
			*dst = raw
			changed = true
		}
	}

	setF(&b.Mass, row[r.bo.mass])
	setF(&b.X, row[r.bo.x])
	setF(&b.Y, row[r.bo.y])
	setF(&b.VX, row[r.bo.vx])
	setF(&b.VY, row[r.bo.vy])
	setF(&b.Radius, row[r.bo.radius])

	if frozen := flagOf(row[r.bo.frozen]); frozen != b.Frozen {
		b.Frozen = frozen
		changed = true
	}
	if collisions := intOf(row[r.bo.collisions]); collisions != b.Collisions {
		b.Collisions = collisions
		changed = true
	}
	return changed
}

func flagOf(raw float64) bool {
	return raw >= 0.5
}

// intOf truncates toward zero. Cross-runtime float round-tripping of
// integers is not guaranteed to preserve exact-integer-ness on every host.
func intOf(raw float64) int64 {
	return int64(raw)
}
