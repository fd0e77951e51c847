package observerproto

import (
	"github.com/steve-haar/door-simulator/internal/sim/geom"
	"github.com/steve-haar/door-simulator/internal/sim/portal"
)

// Version is the observer protocol version (separate from the control protocol).
const Version = "0.1"

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Optional: only receive lifecycle events (created/removed), not positions.
	EventsOnly bool `json:"events_only,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	Params          Params      `json:"params"`

	Walls   []portal.Segment `json:"walls"`
	Portals []portal.Portal  `json:"portals"`
}

type WorldParams struct {
	TickRateHz   int        `json:"tick_rate_hz"`
	FloorSize    float64    `json:"floor_size"`
	AgentSize    geom.Size3 `json:"agent_size"`
	PortalWidth  float64    `json:"portal_width"`
	PortalHeight float64    `json:"portal_height"`
	PortalDepth  float64    `json:"portal_depth"`
	Seed         int64      `json:"seed"`
}

// Params are the runtime-mutable knobs.
type Params struct {
	SpeedUnitsPerSec float64 `json:"speed"`
	RatePerMinute    float64 `json:"rate_per_minute"`
	WallHeight       float64 `json:"wall_height"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	Elapsed         float64 `json:"elapsed"`
	Params          Params  `json:"params"`

	Agents  []AgentState `json:"agents,omitempty"`
	Created []AgentState `json:"created,omitempty"`
	Removed []string     `json:"removed,omitempty"`
}

type AgentState struct {
	ID     string    `json:"id"`
	Pos    geom.Vec2 `json:"pos"`
	Y      float64   `json:"y"`
	Bounds geom.AABB `json:"bounds"`

	Target  geom.Vec2 `json:"target"`
	Outside bool      `json:"outside,omitempty"`
	PathLen int       `json:"path_len"`

	EntryPortal string `json:"entry_portal,omitempty"`
	ExitPortal  string `json:"exit_portal,omitempty"`
}
