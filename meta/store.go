// Package meta holds the consumer-only state that must stay id-aligned with
// the engine's entity set. Records are created and deleted in lock-step with
// the engine diff; the engine never reads or writes any of this.
package meta

import (
	"github.com/orbitlab/simbridge/state"
)

// Keys reported in the sim-level metadata diff.
const (
	KeyTitle   = "title"
	KeyCameraX = "cameraX"
	KeyCameraY = "cameraY"
	KeyZoom    = "zoom"
)

// Record carries the consumer-side fields for one body.
type Record struct {
	Label  string
	Color  int64
	Pinned bool
	Notes  string
}

// RecordPatch is a partial update of a Record; nil fields are left alone.
type RecordPatch struct {
	Label  *string
	Color  *int64
	Pinned *bool
	Notes  *string
}

// SimMeta carries the consumer-side global fields.
type SimMeta struct {
	Title   string
	CameraX float64
	CameraY float64
	Zoom    float64
}

// SimPatch is a partial update of SimMeta.
type SimPatch struct {
	Title   *string
	CameraX *float64
	CameraY *float64
	Zoom    *float64
}

// Diff is the metadata change-set for one frame.
type Diff struct {
	Sim     state.KeySet
	Updated state.IDSet
}

func newMetaDiff() Diff {
	return Diff{Sim: state.KeySet{}, Updated: state.IDSet{}}
}

// Store owns the metadata records. Writes land in a "next" diff buffer that
// SyncDiff promotes to the visible "current" diff, so updates applied after
// a frame was read never leak into the diff already consumed.
type Store struct {
	records map[state.ID]*Record
	sim     SimMeta

	current Diff
	next    Diff
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		records: map[state.ID]*Record{},
		sim:     SimMeta{Zoom: 1},
		current: newMetaDiff(),
		next:    newMetaDiff(),
	}
}

// SyncDiff mirrors the engine's id lifecycle. It promotes the buffered diff,
// then inserts a default record for every created id not already present
// (idempotent create: pre-seeded records from a state import survive) and
// removes the record for every deleted id, dropping the id from any pending
// updated tracking.
func (s *Store) SyncDiff(created, deleted state.IDSet) {
	s.current, s.next = s.next, s.current
	clear(s.next.Sim)
	clear(s.next.Updated)

	for id := range created {
		if _, ok := s.records[id]; ok {
			continue
		}
		s.records[id] = &Record{}
	}
	for id := range deleted {
		delete(s.records, id)
		delete(s.current.Updated, id)
		delete(s.next.Updated, id)
	}
}

// Seed inserts a record for id ahead of the corresponding engine diff, e.g.
// while applying an imported state. The later SyncDiff create is a no-op.
func (s *Store) Seed(id state.ID, rec Record) {
	s.records[id] = &rec
}

// Record returns the stable record for id.
func (s *Store) Record(id state.ID) (*Record, bool) {
	r, ok := s.records[id]
	return r, ok
}

// Len is the number of live records.
func (s *Store) Len() int {
	return len(s.records)
}

// Sim returns the global metadata record.
func (s *Store) Sim() SimMeta {
	return s.sim
}

// Diff returns the diff promoted by the most recent SyncDiff.
func (s *Store) Diff() Diff {
	return s.current
}

// UpdateRecord applies a partial update to id's record and reports whether
// the id exists. Writing a value equal to the current one adds no diff
// entry.
func (s *Store) UpdateRecord(id state.ID, patch RecordPatch) bool {
	rec, ok := s.records[id]
	if !ok {
		return false
	}
	changed := false
	if patch.Label != nil && *patch.Label != rec.Label {
		rec.Label = *patch.Label
		changed = true
	}
	if patch.Color != nil && *patch.Color != rec.Color {
		rec.Color = *patch.Color
		changed = true
	}
	if patch.Pinned != nil && *patch.Pinned != rec.Pinned {
		rec.Pinned = *patch.Pinned
		changed = true
	}
	if patch.Notes != nil && *patch.Notes != rec.Notes {
		rec.Notes = *patch.Notes
		changed = true
	}
	if changed {
		s.next.Updated.Add(id)
	}
	return true
}

// UpdateSim applies a partial update to the global metadata.
func (s *Store) UpdateSim(patch SimPatch) {
	if patch.Title != nil && *patch.Title != s.sim.Title {
		s.sim.Title = *patch.Title
		s.next.Sim[KeyTitle] = struct{}{}
	}
	if patch.CameraX != nil && *patch.CameraX != s.sim.CameraX {
		s.sim.CameraX = *patch.CameraX
		s.next.Sim[KeyCameraX] = struct{}{}
	}
	if patch.CameraY != nil && *patch.CameraY != s.sim.CameraY {
		s.sim.CameraY = *patch.CameraY
		s.next.Sim[KeyCameraY] = struct{}{}
	}
	if patch.Zoom != nil && *patch.Zoom != s.sim.Zoom {
		s.sim.Zoom = *patch.Zoom
		s.next.Sim[KeyZoom] = struct{}{}
	}
}
