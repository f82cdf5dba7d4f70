package layout

import (
	"testing"

	"pkg.world.dev/world-engine/assert"
)

func TestRegistryAssignsSlotsInSchemaOrder(t *testing.T) {
	r, err := NewRegistry([]Field{
		{"alpha", Float},
		{"beta", Int},
		{"gamma", Flag},
	})
	assert.NilError(t, err)
	assert.Equal(t, 3, r.Stride())
	assert.DeepEqual(t, []string{"alpha", "beta", "gamma"}, r.Names())

	i, ok := r.Index("beta")
	assert.Check(t, ok)
	assert.Equal(t, 1, i)
	assert.Equal(t, Int, r.KindAt(1))
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry([]Field{
		{"mass", Float},
		{"mass", Float},
	})
	assert.ErrorIs(t, err, ErrDuplicateField)
}

func TestRegistryRejectsEmptySchema(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.ErrorIs(t, err, ErrEmptySchema)
}

func TestUnknownFieldLookups(t *testing.T) {
	r := Body()
	_, ok := r.Index("nope")
	assert.Check(t, !ok)
	_, ok = r.KindOf("nope")
	assert.Check(t, !ok)
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, 1.0, Coerce(Flag, 0.9999))
	assert.Equal(t, 0.0, Coerce(Flag, 0.4999))
	assert.Equal(t, 1.0, Coerce(Flag, 1.0))
	assert.Equal(t, 3.0, Coerce(Int, 3.7))
	assert.Equal(t, -3.0, Coerce(Int, -3.7))
	assert.Equal(t, 3.7, Coerce(Float, 3.7))
}

func TestSharedSchemasAgreeOnIDSlot(t *testing.T) {
	// The id slot must stay first: the diff reader keys everything off it.
	assert.Equal(t, 0, Body().MustIndex(FieldID))
	kind, ok := Body().KindOf(FieldID)
	assert.Check(t, ok)
	assert.Equal(t, Int, kind)
}
