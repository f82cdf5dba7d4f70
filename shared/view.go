package shared

import (
	"unsafe"

	"github.com/rotisserie/eris"
)

var ErrInvalidRegion = eris.New("region pointer and size must be non-zero")

// ViewProvider exposes a borrowed []float64 view over a foreign memory
// region published as a (pointer, size) pair. The view is revalidated on
// every Acquire: a changed pointer or size, or an explicit Invalidate (a
// runtime-level reset on the other side), forces re-acquisition. Callers
// must never hold a view across a tick boundary.
type ViewProvider struct {
	ptr   uintptr
	size  int
	view  []float64
	valid bool
}

// NewViewProvider returns an empty provider; the first Acquire builds the
// view.
func NewViewProvider() *ViewProvider {
	return &ViewProvider{}
}

// Acquire returns a view over the region. The cached view is reused only
// when the pointer and size are unchanged and no invalidation happened since
// the previous call.
func (p *ViewProvider) Acquire(ptr uintptr, size int) ([]float64, error) {
	if ptr == 0 || size <= 0 {
		return nil, eris.Wrapf(ErrInvalidRegion, "ptr=%#x size=%d", ptr, size)
	}
	if p.valid && ptr == p.ptr && size == p.size {
		return p.view, nil
	}
	//nolint:govet // the pointed-to region outlives this view by contract
	p.view = unsafe.Slice((*float64)(unsafe.Pointer(ptr)), size)
	p.ptr = ptr
	p.size = size
	p.valid = true
	return p.view, nil
}

// Invalidate marks the cached view detached so the next Acquire rebuilds it
// even for an identical (pointer, size) pair. Called after any
// native-triggered state replacement.
func (p *ViewProvider) Invalidate() {
	p.valid = false
	p.view = nil
}

// Cached reports whether a valid view is currently held.
func (p *ViewProvider) Cached() bool {
	return p.valid
}
