package routing

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/steve-haar/door-simulator/internal/sim/agents"
	"github.com/steve-haar/door-simulator/internal/sim/geom"
	"github.com/steve-haar/door-simulator/internal/sim/portal"
)

// ErrConfiguration is returned when the environment cannot support traffic at all.
var ErrConfiguration = errors.New("routing configuration error")

// Assignment is the start position and route handed to a new agent.
type Assignment struct {
	Start geom.Vec2
	Path  []agents.Waypoint

	Entry int
	Exit  int
}

// Assigner picks entry/exit portal pairs. It is checked once at construction so
// that spawning can never fail later.
type Assigner struct {
	portals []portal.Portal
	rng     *rand.Rand
}

func NewAssigner(reg *portal.Registry, rng *rand.Rand) (*Assigner, error) {
	if reg.Len() < 2 {
		return nil, fmt.Errorf("%w: need at least 2 portals, have %d", ErrConfiguration, reg.Len())
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrConfiguration)
	}
	return &Assigner{portals: reg.List(), rng: rng}, nil
}

// Pick samples two distinct portal indices uniformly without replacement.
func (a *Assigner) Pick() (entry, exit int) {
	n := len(a.portals)
	entry = a.rng.Intn(n)
	exit = a.rng.Intn(n - 1)
	if exit >= entry {
		exit++
	}
	return entry, exit
}

// AssignPath draws a portal pair and derives the two-waypoint route: the staging
// point in front of the entry portal, then the exit point of the other portal.
func (a *Assigner) AssignPath() Assignment {
	i, j := a.Pick()
	return Route(a.portals[i], a.portals[j], i, j)
}

// Route builds the assignment for an explicit portal pair.
func Route(entry, exit portal.Portal, i, j int) Assignment {
	stage := entry.StagingPoint()
	out := exit.ExitPoint()
	return Assignment{
		Start: entry.EntryPoint(),
		Path: []agents.Waypoint{
			{X: stage.X, Z: stage.Z, Outside: true},
			{X: out.X, Z: out.Z},
		},
		Entry: i,
		Exit:  j,
	}
}

func (a *Assigner) Portal(i int) portal.Portal { return a.portals[i] }
