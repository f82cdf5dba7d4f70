// Package shared owns the numeric regions that cross the engine/consumer
// boundary. The native side writes through an Arena; the consumer side reads
// through a ViewProvider that wraps the published (pointer, size) pairs as
// borrowed float64 views.
package shared

import (
	"unsafe"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidCapacity = eris.New("arena capacity must be positive")
	ErrDisposed        = eris.New("arena has been released")
	ErrShortSnapshot   = eris.New("snapshot write does not match region size")
)

// Arena holds the two contiguous regions the engine publishes each tick: a
// fixed-size snapshot region and a growable per-body region. The arena is
// exclusively owned by the native side; consumers only ever see the
// (pointer, size) pairs.
type Arena struct {
	log zerolog.Logger

	snapshot []float64
	bodies   []float64

	stride   int // slots per body record
	capacity int // body records the region can hold

	// staging is reused every tick so the per-body write path does not
	// allocate. Rows are filled here and bulk-copied into bodies.
	staging []float64

	disposed bool
}

// NewArena allocates both regions. snapshotSize and stride come from the
// layout registry; initialCapacity is the number of body records to
// preallocate and must be positive.
func NewArena(snapshotSize, stride, initialCapacity int, log zerolog.Logger) (*Arena, error) {
	if initialCapacity <= 0 {
		return nil, eris.Wrapf(ErrInvalidCapacity, "got %d", initialCapacity)
	}
	if snapshotSize <= 0 || stride <= 0 {
		return nil, eris.Wrapf(ErrInvalidCapacity, "snapshot size %d, stride %d", snapshotSize, stride)
	}
	a := &Arena{
		log:      log,
		snapshot: make([]float64, snapshotSize),
		bodies:   make([]float64, stride*initialCapacity),
		stride:   stride,
		capacity: initialCapacity,
		staging:  make([]float64, stride*initialCapacity),
	}
	log.Debug().
		Int("snapshot_slots", snapshotSize).
		Int("body_stride", stride).
		Int("body_capacity", initialCapacity).
		Msg("arena allocated")
	return a, nil
}

// EnsureCapacity grows the body region until it can hold count records.
// Growth doubles and never shrinks. The old contents are not preserved: the
// region is fully rewritten every tick, so only the pointer/size publication
// has to stay consistent.
func (a *Arena) EnsureCapacity(count int) error {
	if a.disposed {
		return ErrDisposed
	}
	if count <= a.capacity {
		return nil
	}
	newCap := a.capacity
	for newCap < count {
		newCap *= 2
	}
	a.bodies = make([]float64, a.stride*newCap)
	a.staging = make([]float64, a.stride*newCap)
	a.log.Debug().
		Int("old_capacity", a.capacity).
		Int("new_capacity", newCap).
		Msg("arena body region grown")
	a.capacity = newCap
	return nil
}

// Capacity is the number of body records the region currently holds.
func (a *Arena) Capacity() int {
	return a.capacity
}

// Stride is the number of slots per body record.
func (a *Arena) Stride() int {
	return a.stride
}

// WriteSnapshot copies the fixed snapshot record into the snapshot region.
func (a *Arena) WriteSnapshot(values []float64) error {
	if a.disposed {
		return ErrDisposed
	}
	if len(values) != len(a.snapshot) {
		return eris.Wrapf(ErrShortSnapshot, "got %d slots, region holds %d", len(values), len(a.snapshot))
	}
	copy(a.snapshot, values)
	return nil
}

// StagingRow returns the reusable staging slots for body record i. Callers
// fill rows 0..count-1 and then CommitBodies(count).
func (a *Arena) StagingRow(i int) []float64 {
	off := i * a.stride
	return a.staging[off : off+a.stride]
}

// CommitBodies bulk-copies the first count staged records into the shared
// body region.
func (a *Arena) CommitBodies(count int) error {
	if a.disposed {
		return ErrDisposed
	}
	if count > a.capacity {
		return eris.Errorf("commit of %d bodies exceeds capacity %d", count, a.capacity)
	}
	copy(a.bodies[:count*a.stride], a.staging[:count*a.stride])
	return nil
}

// SnapshotRegion returns the published (pointer, size) of the snapshot
// region.
func (a *Arena) SnapshotRegion() (uintptr, int) {
	if a.disposed || len(a.snapshot) == 0 {
		return 0, 0
	}
	return uintptr(unsafe.Pointer(&a.snapshot[0])), len(a.snapshot)
}

// BodiesRegion returns the published (pointer, size) of the body region. The
// pointer changes whenever EnsureCapacity reallocates; consumers must
// re-acquire their view when it does.
func (a *Arena) BodiesRegion() (uintptr, int) {
	if a.disposed || len(a.bodies) == 0 {
		return 0, 0
	}
	return uintptr(unsafe.Pointer(&a.bodies[0])), len(a.bodies)
}

// Release drops both regions. Releasing twice is a no-op.
func (a *Arena) Release() {
	if a.disposed {
		return
	}
	a.disposed = true
	a.snapshot = nil
	a.bodies = nil
	a.staging = nil
	a.log.Debug().Msg("arena released")
}

// Disposed reports whether Release has been called.
func (a *Arena) Disposed() bool {
	return a.disposed
}
