package navigation

import (
	"github.com/steve-haar/door-simulator/internal/sim/agents"
	"github.com/steve-haar/door-simulator/internal/sim/geom"
)

// ArrivalRadius is the Manhattan distance under which a waypoint counts as reached.
const ArrivalRadius = 2.0

// Registry is the part of the agent store a step may touch.
type Registry interface {
	Remove(id string) bool
	Refit(a *agents.Agent)
}

type Outcome int

const (
	Moved Outcome = iota
	Arrived
	Removed
)

func (o Outcome) String() string {
	switch o {
	case Moved:
		return "moved"
	case Arrived:
		return "arrived"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// Step advances one agent by movement toward its current waypoint. Reaching the
// last waypoint removes the agent from reg in the same call.
func Step(reg Registry, a *agents.Agent, movement float64) Outcome {
	target, ok := a.Target()
	if !ok {
		reg.Remove(a.ID)
		return Removed
	}
	d := target.Pos().Sub(a.Pos)
	if geom.Manhattan(target.Pos(), a.Pos) < ArrivalRadius {
		return arrive(reg, a)
	}
	l := d.Len()
	if l == 0 || !d.Finite() {
		return arrive(reg, a)
	}
	a.Pos = a.Pos.Add(d.Scale(movement / l))
	reg.Refit(a)
	return Moved
}

func arrive(reg Registry, a *agents.Agent) Outcome {
	if a.PopWaypoint() == 0 {
		reg.Remove(a.ID)
		return Removed
	}
	return Arrived
}
