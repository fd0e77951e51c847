package world

import (
	"time"

	"github.com/steve-haar/door-simulator/internal/sim/geom"
)

type WorldConfig struct {
	ID         string
	TickRateHz int
	Seed       int64

	// AgentSize is the fixed box every agent occupies; y is held at H/2.
	AgentSize geom.Size3

	// MaxFrameDelta caps the wall-clock delta fed to a single tick (seconds), so a
	// stalled loop resumes instead of teleporting every agent.
	MaxFrameDelta float64

	// SnapshotEveryTicks is the cadence of state snapshots sent to the snapshot
	// sink. Zero disables them.
	SnapshotEveryTicks uint64

	// Initial runtime parameters.
	Params Params

	// Clock drives Run. Nil means wall time.
	Clock Clock
}

// Clock is the frame time source used by Run.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "floor_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 30
	}
	if c.AgentSize.W <= 0 {
		c.AgentSize.W = 0.5
	}
	if c.AgentSize.H <= 0 {
		c.AgentSize.H = 1.8
	}
	if c.AgentSize.D <= 0 {
		c.AgentSize.D = 0.5
	}
	if c.MaxFrameDelta <= 0 {
		c.MaxFrameDelta = 0.5
	}
	c.Params = c.Params.clamped()
	if c.Clock == nil {
		c.Clock = systemClock{}
	}
}
