// Package compose joins engine records and metadata records into read-only
// combined views and checks the cross-diff invariants before a frame is
// published.
package compose

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/orbitlab/simbridge/meta"
	"github.com/orbitlab/simbridge/state"
)

// Invariant names reported by InvariantError.
const (
	InvariantCreatedHasRecords = "created id must have engine and metadata records"
	InvariantDeletedDisjoint   = "deleted ids must be disjoint from created ids"
	InvariantDeletedHadView    = "deleted id must have had a combined view"
	InvariantUpdatedHadView    = "updated id must already have a combined view"
)

// InvariantError identifies which cross-diff invariant a frame violated.
type InvariantError struct {
	Invariant string
	ID        state.ID
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("frame invariant violated: %s (id %d)", e.Invariant, e.ID)
}

// CombinedView is the read-only join of one engine record and one metadata
// record sharing an id. Its lifetime is bounded by the underlying records: a
// view is dropped the moment its id is deleted.
type CombinedView struct {
	ID   state.ID
	Body *state.Body
	Meta *meta.Record
}

// Frame is the published per-tick output: the live views plus the merged
// change-sets from both diffs.
type Frame struct {
	Created state.IDSet
	Updated state.IDSet
	Deleted state.IDSet
	Sim     state.KeySet
}

// EngineState is the consumer-side surface of the state reader.
type EngineState interface {
	Body(id state.ID) (*state.Body, bool)
	Diff() *state.Diff
}

// MetaState is the surface of the application metadata store.
type MetaState interface {
	Record(id state.ID) (*meta.Record, bool)
	Diff() meta.Diff
}

// Composer maintains the combined view index across frames.
type Composer struct {
	log      zerolog.Logger
	views    map[state.ID]*CombinedView
	validate bool
	frame    Frame
}

// NewComposer returns a composer. With validate set, every Publish checks
// the cross-diff invariants first; production callers may disable it and
// must not rely on validation running.
func NewComposer(validate bool, log zerolog.Logger) *Composer {
	return &Composer{
		log:      log,
		views:    map[state.ID]*CombinedView{},
		validate: validate,
		frame: Frame{
			Created: state.IDSet{},
			Updated: state.IDSet{},
			Deleted: state.IDSet{},
			Sim:     state.KeySet{},
		},
	}
}

// View returns the combined view for id.
func (c *Composer) View(id state.ID) (*CombinedView, bool) {
	v, ok := c.views[id]
	return v, ok
}

// Len is the number of live views.
func (c *Composer) Len() int {
	return len(c.views)
}

// Frame returns the change-sets published by the most recent Publish. The
// sets are reused across frames.
func (c *Composer) Frame() *Frame {
	return &c.frame
}

// Publish validates the frame, updates the view index from the engine diff,
// and merges both diffs into the published change-sets. Updated ids from the
// engine and metadata diffs are unioned, so an id touched by both appears
// exactly once.
func (c *Composer) Publish(reader EngineState, store MetaState) error {
	engineDiff := reader.Diff()
	metaDiff := store.Diff()

	if c.validate {
		if err := c.check(reader, store, engineDiff, metaDiff); err != nil {
			return err
		}
	}

	for id := range engineDiff.Deleted {
		delete(c.views, id)
	}
	for id := range engineDiff.Created {
		body, _ := reader.Body(id)
		rec, _ := store.Record(id)
		c.views[id] = &CombinedView{ID: id, Body: body, Meta: rec}
	}

	clear(c.frame.Created)
	clear(c.frame.Updated)
	clear(c.frame.Deleted)
	clear(c.frame.Sim)
	for id := range engineDiff.Created {
		c.frame.Created.Add(id)
	}
	for id := range engineDiff.Deleted {
		c.frame.Deleted.Add(id)
	}
	for id := range engineDiff.Updated {
		c.frame.Updated.Add(id)
	}
	for id := range metaDiff.Updated {
		c.frame.Updated.Add(id)
	}
	for key := range engineDiff.Sim {
		c.frame.Sim[key] = struct{}{}
	}
	for key := range metaDiff.Sim {
		c.frame.Sim[key] = struct{}{}
	}
	return nil
}

func (c *Composer) check(
	reader EngineState, store MetaState, engineDiff *state.Diff, metaDiff meta.Diff,
) error {
	for id := range engineDiff.Created {
		if _, ok := reader.Body(id); !ok {
			return eris.Wrap(&InvariantError{Invariant: InvariantCreatedHasRecords, ID: id}, "engine record missing")
		}
		if _, ok := store.Record(id); !ok {
			return eris.Wrap(&InvariantError{Invariant: InvariantCreatedHasRecords, ID: id}, "metadata record missing")
		}
	}
	for id := range engineDiff.Deleted {
		if engineDiff.Created.Has(id) {
			return eris.Wrap(&InvariantError{Invariant: InvariantDeletedDisjoint, ID: id}, "engine diff")
		}
		if _, ok := c.views[id]; !ok {
			return eris.Wrap(&InvariantError{Invariant: InvariantDeletedHadView, ID: id}, "engine diff")
		}
	}
	for id := range engineDiff.Updated {
		if _, ok := c.views[id]; !ok {
			return eris.Wrap(&InvariantError{Invariant: InvariantUpdatedHadView, ID: id}, "engine diff")
		}
	}
	for id := range metaDiff.Updated {
		if _, ok := c.views[id]; !ok {
			return eris.Wrap(&InvariantError{Invariant: InvariantUpdatedHadView, ID: id}, "metadata diff")
		}
	}
	return nil
}
