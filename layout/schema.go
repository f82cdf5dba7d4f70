package layout

// Field names for the snapshot layout.
const (
	FieldGravity   = "gravity"
	FieldTimeScale = "timeScale"
	FieldSoftening = "softening"
	FieldDt        = "dt"
	FieldElapsed   = "elapsed"
	FieldPaused    = "paused"
	FieldTick      = "tick"
	FieldBodyCount = "bodyCount"
	FieldBodiesPtr = "bodiesPtr"
	FieldBodiesLen = "bodiesLen"
)

// Field names for the per-body layout.
const (
	FieldID         = "id"
	FieldMass       = "mass"
	FieldX          = "x"
	FieldY          = "y"
	FieldVX         = "vx"
	FieldVY         = "vy"
	FieldRadius     = "radius"
	FieldFrozen     = "frozen"
	FieldCollisions = "collisions"
)

// snapshotSchema and bodySchema are the authoritative slot orderings. Adding
// a field means appending here; reordering is a wire-format break.
var snapshotSchema = []Field{
	{FieldGravity, Float},
	{FieldTimeScale, Float},
	{FieldSoftening, Float},
	{FieldDt, Float},
	{FieldElapsed, Float},
	{FieldPaused, Flag},
	{FieldTick, Int},
	{FieldBodyCount, Int},
	{FieldBodiesPtr, Int},
	{FieldBodiesLen, Int},
}

var bodySchema = []Field{
	{FieldID, Int},
	{FieldMass, Float},
	{FieldX, Float},
	{FieldY, Float},
	{FieldVX, Float},
	{FieldVY, Float},
	{FieldRadius, Float},
	{FieldFrozen, Flag},
	{FieldCollisions, Int},
}

var (
	snapshotRegistry = mustNewRegistry(snapshotSchema)
	bodyRegistry     = mustNewRegistry(bodySchema)
)

func mustNewRegistry(fields []Field) *Registry {
	r, err := NewRegistry(fields)
	if err != nil {
		panic(err)
	}
	return r
}

// Snapshot returns the registry for the singleton snapshot record.
func Snapshot() *Registry {
	return snapshotRegistry
}

// Body returns the registry for per-body records.
func Body() *Registry {
	return bodyRegistry
}
