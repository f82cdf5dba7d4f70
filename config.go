package simbridge

import (
	"github.com/JeremyLoy/config"
	"github.com/rotisserie/eris"
)

// BridgeConfig controls bridge construction. Zero values are filled from
// defaults by LoadConfig; New validates nothing beyond what its components
// validate themselves.
type BridgeConfig struct {
	// InitialCapacity is the number of body records preallocated in the
	// shared region.
	InitialCapacity int `config:"SIMBRIDGE_CAPACITY"`
	// DebugValidation enables cross-diff invariant checks before each frame
	// is published. Production deployments may turn it off for speed.
	DebugValidation bool `config:"SIMBRIDGE_DEBUG_VALIDATION"`
	// LogCapacity is the size of the textual ring log.
	LogCapacity int `config:"SIMBRIDGE_LOG_CAPACITY"`
	// RedisAddress enables the state archive when non-empty.
	RedisAddress  string `config:"SIMBRIDGE_REDIS_ADDRESS"`
	RedisPassword string `config:"SIMBRIDGE_REDIS_PASSWORD"`
	// Namespace prefixes all archive keys.
	Namespace string `config:"SIMBRIDGE_NAMESPACE"`
}

// DefaultConfig returns the configuration used when no environment is set.
func DefaultConfig() BridgeConfig {
	return BridgeConfig{
		InitialCapacity: 64,
		DebugValidation: true,
		LogCapacity:     256,
		Namespace:       "simbridge",
	}
}

// LoadConfig reads BridgeConfig from the environment on top of the
// defaults.
func LoadConfig() (BridgeConfig, error) {
	cfg := DefaultConfig()
	if err := config.FromEnv().To(&cfg); err != nil {
		return cfg, eris.Wrap(err, "load bridge config")
	}
	return cfg, nil
}
