package agents

import (
	"errors"
	"fmt"
	"sort"

	"github.com/steve-haar/door-simulator/internal/sim/geom"
)

// Waypoint is a ground-plane target. Outside marks the staging point in front of
// the entry portal; it carries no behaviour.
type Waypoint struct {
	X       float64 `json:"x"`
	Z       float64 `json:"z"`
	Outside bool    `json:"outside,omitempty"`
}

func (w Waypoint) Pos() geom.Vec2 { return geom.Vec2{X: w.X, Z: w.Z} }

// Agent is one walker. A registered agent always has at least one waypoint left.
type Agent struct {
	ID  string
	Num uint64

	Pos    geom.Vec2
	Bounds geom.AABB
	Path   []Waypoint

	EntryPortal string
	ExitPortal  string
	SpawnTick   uint64
}

// Target is the waypoint currently being walked to.
func (a *Agent) Target() (Waypoint, bool) {
	if len(a.Path) == 0 {
		return Waypoint{}, false
	}
	return a.Path[0], true
}

// PopWaypoint drops the current target and returns how many remain.
func (a *Agent) PopWaypoint() int {
	if len(a.Path) > 0 {
		a.Path = a.Path[1:]
	}
	return len(a.Path)
}

var ErrEmptyPath = errors.New("agent path is empty")

// Registry is the authoritative set of live agents. It is owned by the world loop
// and is not safe for concurrent use.
type Registry struct {
	byID    map[string]*Agent
	size    geom.Size3
	nextNum uint64
}

func NewRegistry(size geom.Size3) *Registry {
	return &Registry{
		byID: map[string]*Agent{},
		size: size,
	}
}

// Spawn admits a new agent at start with the given path.
func (r *Registry) Spawn(start geom.Vec2, path []Waypoint, tick uint64) (*Agent, error) {
	if len(path) == 0 {
		return nil, ErrEmptyPath
	}
	r.nextNum++
	a := &Agent{
		ID:        fmt.Sprintf("A%06d", r.nextNum),
		Num:       r.nextNum,
		Pos:       start,
		Path:      append([]Waypoint(nil), path...),
		SpawnTick: tick,
	}
	r.Refit(a)
	r.byID[a.ID] = a
	return a, nil
}

// Refit recomputes the bounding box from the agent's current position.
func (r *Registry) Refit(a *Agent) {
	a.Bounds = geom.BoxAround(a.Pos, r.HalfHeight(), r.size)
}

// HalfHeight is the fixed y of every agent's centre.
func (r *Registry) HalfHeight() float64 { return r.size.H / 2 }

func (r *Registry) Get(id string) (*Agent, bool) {
	a, ok := r.byID[id]
	return a, ok
}

func (r *Registry) Remove(id string) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	return true
}

func (r *Registry) Len() int { return len(r.byID) }

// Spawned is the total number of agents ever admitted.
func (r *Registry) Spawned() uint64 { return r.nextNum }

// Snapshot returns the live agents in spawn order.
func (r *Registry) Snapshot() []*Agent {
	out := make([]*Agent, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out
}

// Restore inserts an agent with an existing identity. spawned is the total to
// resume numbering from; it never moves backwards.
func (r *Registry) Restore(a *Agent, spawned uint64) error {
	if len(a.Path) == 0 {
		return fmt.Errorf("restore %s: %w", a.ID, ErrEmptyPath)
	}
	if _, ok := r.byID[a.ID]; ok {
		return fmt.Errorf("restore %s: duplicate agent id", a.ID)
	}
	if a.Num > spawned {
		return fmt.Errorf("restore %s: num %d beyond spawned %d", a.ID, a.Num, spawned)
	}
	r.Refit(a)
	r.byID[a.ID] = a
	if spawned > r.nextNum {
		r.nextNum = spawned
	}
	return nil
}
