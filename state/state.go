// Package state decodes the shared regions into structured records every
// tick and computes the id-level diff (created, updated, deleted) that lets
// consumers avoid rescanning the full state.
package state

// ID is the engine-assigned identifier of a body. IDs are positive, unique
// among live bodies, and stay below 2^31 so a float64 slot round-trips them
// exactly.
type ID int64

// Snapshot is the singleton record of global simulation parameters. The
// reader mutates one Snapshot in place across ticks, so a consumer-held
// reference always reflects the latest decode.
type Snapshot struct {
	Gravity   float64
	TimeScale float64
	Softening float64
	Dt        float64
	Elapsed   float64
	Paused    bool
	Tick      int64
	BodyCount int

	// BodiesPtr and BodiesLen locate the per-body region. Published inside
	// the snapshot so the consumer never needs a separate boundary call.
	BodiesPtr uintptr
	BodiesLen int
}

// Body is the decoded per-body record. Records keep object identity: a
// consumer holding a *Body for a live id sees field updates in place, never
// a replacement.
type Body struct {
	ID         ID
	Mass       float64
	X          float64
	Y          float64
	VX         float64
	VY         float64
	Radius     float64
	Frozen     bool
	Collisions int64
}

// IDSet is a set of body ids.
type IDSet map[ID]struct{}

// Has reports membership.
func (s IDSet) Has(id ID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id.
func (s IDSet) Add(id ID) {
	s[id] = struct{}{}
}

// Len is the number of ids in the set.
func (s IDSet) Len() int {
	return len(s)
}

// KeySet is a set of snapshot scalar names.
type KeySet map[string]struct{}

// Has reports membership.
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Diff is the change-set between the previous decode and the current one.
// Created, Updated and Deleted are pairwise disjoint.
type Diff struct {
	Sim     KeySet
	Created IDSet
	Updated IDSet
	Deleted IDSet
}

func newDiff() Diff {
	return Diff{
		Sim:     KeySet{},
		Created: IDSet{},
		Updated: IDSet{},
		Deleted: IDSet{},
	}
}

func (d *Diff) clear() {
	clear(d.Sim)
	clear(d.Created)
	clear(d.Updated)
	clear(d.Deleted)
}
