package engine

import (
	"testing"

	"github.com/rs/zerolog"
	"pkg.world.dev/world-engine/assert"

	"github.com/orbitlab/simbridge/codec"
	"github.com/orbitlab/simbridge/layout"
	"github.com/orbitlab/simbridge/state"
)

func codecBody(id int64) codec.BodyParams {
	return codec.BodyParams{ID: id, Mass: 1}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(4, nil, zerolog.Nop())
	assert.NilError(t, err)
	t.Cleanup(e.Release)
	return e
}

func TestSpawnAssignsFreshPositiveIDs(t *testing.T) {
	e := newTestEngine(t)
	seen := map[state.ID]bool{}
	for i := 0; i < 100; i++ {
		id := e.Spawn()
		assert.Check(t, id > 0)
		assert.Check(t, !seen[id], "id %d assigned twice", id)
		seen[id] = true
	}
	assert.Equal(t, 100, e.Len())
}

func TestDespawnReportsExistence(t *testing.T) {
	e := newTestEngine(t)
	id := e.Spawn()
	assert.Check(t, e.Despawn(id))
	assert.Check(t, !e.Despawn(id))
	assert.Equal(t, 0, e.Len())
}

func TestSetBodyCoercesAndValidates(t *testing.T) {
	e := newTestEngine(t)
	id := e.Spawn()

	ok, err := e.SetBody(id, map[string]float64{
		layout.FieldMass:       10,
		layout.FieldFrozen:     0.9,
		layout.FieldCollisions: 2.7,
	})
	assert.NilError(t, err)
	assert.Check(t, ok)

	ok, err = e.SetBody(999, map[string]float64{layout.FieldMass: 1})
	assert.NilError(t, err)
	assert.Check(t, !ok)

	_, err = e.SetBody(id, map[string]float64{"warp": 1})
	assert.ErrorIs(t, err, ErrUnknownField)
	_, err = e.SetBody(id, map[string]float64{layout.FieldID: 5})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestSetSnapshotRejectsDerivedFields(t *testing.T) {
	e := newTestEngine(t)
	assert.NilError(t, e.SetSnapshot(map[string]float64{layout.FieldGravity: 2}))
	assert.Equal(t, 2.0, e.Params().Gravity)

	assert.ErrorIs(t, e.SetSnapshot(map[string]float64{layout.FieldTick: 5}), ErrUnknownField)
	assert.ErrorIs(t, e.SetSnapshot(map[string]float64{layout.FieldBodiesPtr: 1}), ErrUnknownField)
	assert.ErrorIs(t, e.SetSnapshot(map[string]float64{"nope": 1}), ErrUnknownField)
}

func TestStepGrowsArenaMonotonically(t *testing.T) {
	e := newTestEngine(t)
	capBefore := e.Arena().Capacity()

	ids := make([]state.ID, 0, 20)
	for i := 0; i < 20; i++ {
		ids = append(ids, e.Spawn())
	}
	assert.NilError(t, e.Step(true))
	capAfter := e.Arena().Capacity()
	assert.Check(t, capAfter >= 20)
	assert.Check(t, capAfter >= capBefore)

	// Despawning everything never shrinks the region.
	for _, id := range ids {
		assert.Check(t, e.Despawn(id))
	}
	assert.NilError(t, e.Step(true))
	assert.Equal(t, capAfter, e.Arena().Capacity())
}

func TestDriftIntegratorMovesUnfrozenBodies(t *testing.T) {
	e := newTestEngine(t)
	moving := e.Spawn()
	frozen := e.Spawn()

	_, err := e.SetBody(moving, map[string]float64{layout.FieldVX: 60, layout.FieldVY: -60})
	assert.NilError(t, err)
	_, err = e.SetBody(frozen, map[string]float64{layout.FieldVX: 60, layout.FieldFrozen: 1})
	assert.NilError(t, err)
	assert.NilError(t, e.SetSnapshot(map[string]float64{layout.FieldDt: 0.5, layout.FieldTimeScale: 1}))

	assert.NilError(t, e.Step(false))

	doc := e.Export()
	byID := map[int64]struct{ x, y float64 }{}
	for _, b := range doc.Bodies {
		byID[b.ID] = struct{ x, y float64 }{b.X, b.Y}
	}
	assert.Equal(t, 30.0, byID[int64(moving)].x)
	assert.Equal(t, -30.0, byID[int64(moving)].y)
	assert.Equal(t, 0.0, byID[int64(frozen)].x)
}

func TestSyncOnlyStepDoesNotIntegrate(t *testing.T) {
	e := newTestEngine(t)
	id := e.Spawn()
	_, err := e.SetBody(id, map[string]float64{layout.FieldVX: 100})
	assert.NilError(t, err)

	tickBefore := e.Params().Tick
	assert.NilError(t, e.Step(true))
	assert.Equal(t, tickBefore+1, e.Params().Tick)

	doc := e.Export()
	assert.Equal(t, 0.0, doc.Bodies[0].X)
}

func TestPausedStepDoesNotIntegrate(t *testing.T) {
	e := newTestEngine(t)
	id := e.Spawn()
	_, err := e.SetBody(id, map[string]float64{layout.FieldVX: 100})
	assert.NilError(t, err)
	assert.NilError(t, e.SetSnapshot(map[string]float64{layout.FieldPaused: 1}))

	assert.NilError(t, e.Step(false))
	doc := e.Export()
	assert.Equal(t, 0.0, doc.Bodies[0].X)
}

func TestExportImportReplacesBodyTable(t *testing.T) {
	e := newTestEngine(t)
	e.Spawn()
	e.Spawn()
	doc := e.Export()
	assert.Equal(t, 2, len(doc.Bodies))

	other := newTestEngine(t)
	other.Spawn()
	assert.NilError(t, other.Import(doc))
	assert.Equal(t, 2, other.Len())

	// Round trip is faithful for base fields.
	assert.DeepEqual(t, doc, other.Export())
}

func TestImportRejectsBadIDs(t *testing.T) {
	e := newTestEngine(t)
	doc := e.Export()
	doc.Bodies = append(doc.Bodies, codecBody(0))
	assert.Check(t, e.Import(doc) != nil)

	doc = e.Export()
	doc.Bodies = append(doc.Bodies, codecBody(3), codecBody(3))
	assert.Check(t, e.Import(doc) != nil)
}

func TestStepPublishesDecodableState(t *testing.T) {
	e := newTestEngine(t)
	id := e.Spawn()
	_, err := e.SetBody(id, map[string]float64{layout.FieldMass: 7})
	assert.NilError(t, err)
	assert.NilError(t, e.Step(true))

	r := state.NewReader(zerolog.Nop())
	ptr, size := e.Arena().SnapshotRegion()
	assert.NilError(t, r.Refresh(ptr, size))

	b, ok := r.Body(id)
	assert.Check(t, ok)
	assert.Equal(t, 7.0, b.Mass)
	assert.Equal(t, 1, r.Snapshot().BodyCount)
	assert.Equal(t, int64(1), r.Snapshot().Tick)
}
