package portal

import "github.com/steve-haar/door-simulator/internal/sim/geom"

type Wall string

const (
	WallNorth Wall = "north" // z = -size/2, inside is +z
	WallSouth Wall = "south" // z = +size/2, inside is -z
	WallWest  Wall = "west"  // x = -size/2, inside is +x
	WallEast  Wall = "east"  // x = +size/2, inside is -x
)

func (w Wall) Valid() bool {
	switch w {
	case WallNorth, WallSouth, WallWest, WallEast:
		return true
	}
	return false
}

// Inward is the unit normal pointing from the wall into the floor.
func (w Wall) Inward() geom.Vec2 {
	switch w {
	case WallNorth:
		return geom.Vec2{Z: 1}
	case WallSouth:
		return geom.Vec2{Z: -1}
	case WallWest:
		return geom.Vec2{X: 1}
	case WallEast:
		return geom.Vec2{X: -1}
	}
	return geom.Vec2{}
}

// Portal is a door in the boundary. Offsets are added to Position to derive the
// concrete spawn, staging and exit points; they are fixed once built.
type Portal struct {
	ID   string `json:"id"`
	Wall Wall   `json:"wall"`

	Position      geom.Vec2 `json:"position"`
	EntryOffset   geom.Vec2 `json:"entry_offset"`
	ExitOffset    geom.Vec2 `json:"exit_offset"`
	StagingOffset geom.Vec2 `json:"staging_offset"`

	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth"`
}

func (p Portal) EntryPoint() geom.Vec2 { return p.Position.Add(p.EntryOffset) }

func (p Portal) StagingPoint() geom.Vec2 {
	return p.Position.Add(p.EntryOffset).Sub(p.StagingOffset)
}

func (p Portal) ExitPoint() geom.Vec2 { return p.Position.Add(p.ExitOffset) }

// Registry is the read-only portal list handed to the simulation at startup.
type Registry struct {
	portals []Portal
}

func NewRegistry(portals []Portal) *Registry {
	cp := make([]Portal, len(portals))
	copy(cp, portals)
	return &Registry{portals: cp}
}

// List returns the portals in build order. The caller owns the returned slice.
func (r *Registry) List() []Portal {
	if r == nil {
		return nil
	}
	out := make([]Portal, len(r.portals))
	copy(out, r.portals)
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.portals)
}

func (r *Registry) ByID(id string) (Portal, bool) {
	if r == nil {
		return Portal{}, false
	}
	for _, p := range r.portals {
		if p.ID == id {
			return p, true
		}
	}
	return Portal{}, false
}
