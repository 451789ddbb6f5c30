package jitterbuffer

// Config holds the tunables a JitterBuffer is constructed with. Zero-value
// fields fall back to the package defaults in DefaultConfig.
type Config struct {
	InitDepth uint32
	MinDepth  uint32
	MaxDepth  uint32

	IncThresholdMs uint32
	DecThresholdMs uint32
	StepSize       uint32
	ZValue         float64

	IgnoreSidForJitter bool
}

// DefaultConfig returns the spec-mandated defaults: depth {4,3,9} frames,
// a 20ms increase threshold, a 2s decrease debounce, step 1, z=2.0.
func DefaultConfig() Config {
	return Config{
		InitDepth:      defaultInitDepth,
		MinDepth:       defaultMinDepth,
		MaxDepth:       defaultMaxDepth,
		IncThresholdMs: 20,
		DecThresholdMs: 2000,
		StepSize:       1,
		ZValue:         2.0,
	}
}

func (c *Config) normalize() {
	if c.MinDepth == 0 {
		c.MinDepth = defaultMinDepth
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = defaultMaxDepth
	}
	if c.MinDepth > c.MaxDepth {
		c.MinDepth, c.MaxDepth = c.MaxDepth, c.MinDepth
	}
	if c.InitDepth == 0 {
		c.InitDepth = defaultInitDepth
	}
	c.InitDepth = clampDepth(c.InitDepth, c.MinDepth, c.MaxDepth)
	if c.IncThresholdMs == 0 {
		c.IncThresholdMs = 20
	}
	if c.DecThresholdMs == 0 {
		c.DecThresholdMs = 2000
	}
	if c.StepSize == 0 {
		c.StepSize = 1
	}
	if c.ZValue == 0 {
		c.ZValue = 2.0
	}
}
