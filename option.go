package simbridge

import (
	"github.com/rs/zerolog"

	"github.com/orbitlab/simbridge/archive"
	"github.com/orbitlab/simbridge/engine"
)

// Option augments how the Bridge is constructed.
type Option func(*Bridge)

// WithLogger sets the structured logger shared by all bridge components.
// The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(b *Bridge) {
		b.log = log
	}
}

// WithEngine injects a pre-built engine, e.g. one carrying a non-default
// integrator.
func WithEngine(eng *engine.Engine) Option {
	return func(b *Bridge) {
		b.engine = eng
	}
}

// WithArchive injects a pre-built archive, e.g. one pointed at a test
// redis instance.
func WithArchive(a *archive.Archive) Option {
	return func(b *Bridge) {
		b.arch = a
	}
}
