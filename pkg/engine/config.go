package engine

import (
	"time"

	"github.com/rhuss/ormodeler/pkg/normalize"
)

// Config holds configuration for the engine.
type Config struct {
	// ExecTimeout is used when Execute is called without a timeout.
	// Zero leaves the choice to the runner.
	ExecTimeout time.Duration

	// MaxConcurrentRuns bounds simultaneous sandbox executions. Zero or
	// negative means use the default of 3.
	MaxConcurrentRuns int64

	// CodeTemperature is the sampling temperature for code generation.
	// Nil uses 0.2.
	CodeTemperature *float32

	// Normalizer replaces the default normalizer.
	Normalizer *normalize.Normalizer
}

// maxConcurrentRuns returns the effective concurrency bound, defaulting to 3.
func (c Config) maxConcurrentRuns() int64 {
	if c.MaxConcurrentRuns <= 0 {
		return 3
	}
	return c.MaxConcurrentRuns
}

func (c Config) codeTemperature() *float32 {
	if c.CodeTemperature != nil {
		return c.CodeTemperature
	}
	t := float32(0.2)
	return &t
}
