package compose

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"pkg.world.dev/world-engine/assert"

	"github.com/orbitlab/simbridge/meta"
	"github.com/orbitlab/simbridge/state"
)

type fakeEngine struct {
	bodies map[state.ID]*state.Body
	diff   state.Diff
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		bodies: map[state.ID]*state.Body{},
		diff: state.Diff{
			Sim:     state.KeySet{},
			Created: state.IDSet{},
			Updated: state.IDSet{},
			Deleted: state.IDSet{},
		},
	}
}

func (f *fakeEngine) Body(id state.ID) (*state.Body, bool) {
	b, ok := f.bodies[id]
	return b, ok
}

func (f *fakeEngine) Diff() *state.Diff {
	return &f.diff
}

func (f *fakeEngine) resetDiff() {
	clear(f.diff.Sim)
	clear(f.diff.Created)
	clear(f.diff.Updated)
	clear(f.diff.Deleted)
}

type fakeMeta struct {
	records map[state.ID]*meta.Record
	diff    meta.Diff
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{
		records: map[state.ID]*meta.Record{},
		diff:    meta.Diff{Sim: state.KeySet{}, Updated: state.IDSet{}},
	}
}

func (f *fakeMeta) Record(id state.ID) (*meta.Record, bool) {
	r, ok := f.records[id]
	return r, ok
}

func (f *fakeMeta) Diff() meta.Diff {
	return f.diff
}

func (f *fakeMeta) resetDiff() {
	clear(f.diff.Sim)
	clear(f.diff.Updated)
}

func create(e *fakeEngine, m *fakeMeta, id state.ID) {
	e.bodies[id] = &state.Body{ID: id}
	e.diff.Created.Add(id)
	m.records[id] = &meta.Record{}
}

func remove(e *fakeEngine, m *fakeMeta, id state.ID) {
	delete(e.bodies, id)
	delete(m.records, id)
	e.diff.Deleted.Add(id)
}

func invariantOf(t *testing.T, err error) string {
	t.Helper()
	var inv *InvariantError
	assert.Check(t, errors.As(err, &inv), "want InvariantError, got %v", err)
	return inv.Invariant
}

func TestPublishBuildsViewsForCreatedIDs(t *testing.T) {
	e, m := newFakeEngine(), newFakeMeta()
	c := NewComposer(true, zerolog.Nop())
	create(e, m, 1)
	create(e, m, 2)

	assert.NilError(t, c.Publish(e, m))
	assert.Equal(t, 2, c.Len())

	v, ok := c.View(1)
	assert.Check(t, ok)
	assert.Check(t, v.Body == e.bodies[1])
	assert.Check(t, v.Meta == m.records[1])
	assert.Check(t, c.Frame().Created.Has(1))
}

func TestPublishDropsDeletedViews(t *testing.T) {
	e, m := newFakeEngine(), newFakeMeta()
	c := NewComposer(true, zerolog.Nop())
	create(e, m, 1)
	assert.NilError(t, c.Publish(e, m))

	e.resetDiff()
	remove(e, m, 1)
	assert.NilError(t, c.Publish(e, m))

	_, ok := c.View(1)
	assert.Check(t, !ok)
	assert.Equal(t, 0, c.Len())
	assert.Check(t, c.Frame().Deleted.Has(1))
}

func TestUpdatedSetsAreUnioned(t *testing.T) {
	e, m := newFakeEngine(), newFakeMeta()
	c := NewComposer(true, zerolog.Nop())
	create(e, m, 2)
	assert.NilError(t, c.Publish(e, m))

	// Both diffs mark id 2 updated in the same frame.
	e.resetDiff()
	e.diff.Updated.Add(2)
	m.diff.Updated.Add(2)
	assert.NilError(t, c.Publish(e, m))

	assert.Equal(t, 1, len(c.Frame().Updated))
	assert.Check(t, c.Frame().Updated.Has(2))
}

func TestSimKeysAreMerged(t *testing.T) {
	e, m := newFakeEngine(), newFakeMeta()
	c := NewComposer(true, zerolog.Nop())

	e.diff.Sim["gravity"] = struct{}{}
	m.diff.Sim[meta.KeyZoom] = struct{}{}
	assert.NilError(t, c.Publish(e, m))

	assert.Check(t, c.Frame().Sim.Has("gravity"))
	assert.Check(t, c.Frame().Sim.Has(meta.KeyZoom))
}

func TestValidateCreatedWithoutMetadataRecord(t *testing.T) {
	e, m := newFakeEngine(), newFakeMeta()
	c := NewComposer(true, zerolog.Nop())

	e.bodies[1] = &state.Body{ID: 1}
	e.diff.Created.Add(1)
	// No metadata record inserted.
	err := c.Publish(e, m)
	assert.Equal(t, InvariantCreatedHasRecords, invariantOf(t, err))
}

func TestValidateDeletedOverlappingCreated(t *testing.T) {
	e, m := newFakeEngine(), newFakeMeta()
	c := NewComposer(true, zerolog.Nop())
	create(e, m, 1)
	e.diff.Deleted.Add(1)

	err := c.Publish(e, m)
	assert.Equal(t, InvariantDeletedDisjoint, invariantOf(t, err))
}

func TestValidateDeletedWithoutPriorView(t *testing.T) {
	e, m := newFakeEngine(), newFakeMeta()
	c := NewComposer(true, zerolog.Nop())
	e.diff.Deleted.Add(9)

	err := c.Publish(e, m)
	assert.Equal(t, InvariantDeletedHadView, invariantOf(t, err))
}

func TestValidateUpdatedWithoutPriorView(t *testing.T) {
	e, m := newFakeEngine(), newFakeMeta()
	c := NewComposer(true, zerolog.Nop())
	m.diff.Updated.Add(4)

	err := c.Publish(e, m)
	assert.Equal(t, InvariantUpdatedHadView, invariantOf(t, err))
}

func TestValidationCanBeDisabled(t *testing.T) {
	e, m := newFakeEngine(), newFakeMeta()
	c := NewComposer(false, zerolog.Nop())
	e.diff.Deleted.Add(9)

	// Non-debug builds skip the checks entirely.
	assert.NilError(t, c.Publish(e, m))
}
