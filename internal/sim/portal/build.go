package portal

import (
	"fmt"
	"sort"

	"github.com/steve-haar/door-simulator/internal/sim/geom"
)

// Spec places one portal. Along is the offset of the portal centre from the wall
// midpoint as a fraction of the floor size, in [-0.5, 0.5].
type Spec struct {
	ID    string
	Wall  Wall
	Along float64
}

type Layout struct {
	FloorSize  float64
	WallHeight float64

	PortalWidth  float64
	PortalHeight float64
	PortalDepth  float64

	// Distances along the wall normal used to derive each portal's offsets.
	EntryDistance   float64
	ExitDistance    float64
	StagingDistance float64

	Portals []Spec
}

// Segment is a solid run of wall between portal gaps.
type Segment struct {
	Wall      Wall      `json:"wall"`
	From      geom.Vec2 `json:"from"`
	To        geom.Vec2 `json:"to"`
	Height    float64   `json:"height"`
	Thickness float64   `json:"thickness"`
}

func (s Segment) Length() float64 { return s.To.Sub(s.From).Len() }

// Environment is the static scene produced once at startup.
type Environment struct {
	FloorSize  float64
	WallHeight float64
	Walls      []Segment
	Portals    *Registry

	PortalWidth  float64
	PortalHeight float64
	PortalDepth  float64
}

// Build derives wall segments and portals for a square floor centred on the origin.
func Build(l Layout) (Environment, error) {
	if l.FloorSize <= 0 {
		return Environment{}, fmt.Errorf("floor size must be positive: %v", l.FloorSize)
	}
	if l.PortalWidth <= 0 || l.PortalWidth >= l.FloorSize {
		return Environment{}, fmt.Errorf("portal width %v must be in (0, %v)", l.PortalWidth, l.FloorSize)
	}
	half := l.FloorSize / 2

	type placed struct {
		spec Spec
		t    float64 // coordinate along the wall axis
	}
	byWall := map[Wall][]placed{}
	seen := map[string]bool{}
	portals := make([]Portal, 0, len(l.Portals))

	for i, s := range l.Portals {
		if !s.Wall.Valid() {
			return Environment{}, fmt.Errorf("portal %d: unknown wall %q", i, s.Wall)
		}
		if s.ID == "" {
			s.ID = fmt.Sprintf("%s_%d", s.Wall, i)
		}
		if seen[s.ID] {
			return Environment{}, fmt.Errorf("portal %d: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true

		t := s.Along * l.FloorSize
		if t-l.PortalWidth/2 < -half || t+l.PortalWidth/2 > half {
			return Environment{}, fmt.Errorf("portal %s: along=%v does not fit on the %s wall", s.ID, s.Along, s.Wall)
		}
		byWall[s.Wall] = append(byWall[s.Wall], placed{spec: s, t: t})

		n := s.Wall.Inward()
		portals = append(portals, Portal{
			ID:            s.ID,
			Wall:          s.Wall,
			Position:      onWall(s.Wall, t, half),
			EntryOffset:   n.Scale(l.EntryDistance),
			ExitOffset:    n.Scale(-l.ExitDistance),
			StagingOffset: n.Scale(l.StagingDistance),
			Width:         l.PortalWidth,
			Height:        l.PortalHeight,
			Depth:         l.PortalDepth,
		})
	}

	var walls []Segment
	for _, w := range []Wall{WallNorth, WallEast, WallSouth, WallWest} {
		gaps := byWall[w]
		sort.Slice(gaps, func(i, j int) bool { return gaps[i].t < gaps[j].t })
		for i := 1; i < len(gaps); i++ {
			if gaps[i].t-gaps[i-1].t < l.PortalWidth {
				return Environment{}, fmt.Errorf("portals %s and %s overlap on the %s wall", gaps[i-1].spec.ID, gaps[i].spec.ID, w)
			}
		}

		cur := -half
		emit := func(to float64) {
			if to-cur <= 1e-9 {
				return
			}
			walls = append(walls, Segment{
				Wall:      w,
				From:      onWall(w, cur, half),
				To:        onWall(w, to, half),
				Height:    l.WallHeight,
				Thickness: l.PortalDepth,
			})
		}
		for _, g := range gaps {
			emit(g.t - l.PortalWidth/2)
			cur = g.t + l.PortalWidth/2
		}
		emit(half)
	}

	return Environment{
		FloorSize:  l.FloorSize,
		WallHeight: l.WallHeight,
		Walls:      walls,
		Portals:    NewRegistry(portals),

		PortalWidth:  l.PortalWidth,
		PortalHeight: l.PortalHeight,
		PortalDepth:  l.PortalDepth,
	}, nil
}

func onWall(w Wall, t, half float64) geom.Vec2 {
	switch w {
	case WallNorth:
		return geom.Vec2{X: t, Z: -half}
	case WallSouth:
		return geom.Vec2{X: t, Z: half}
	case WallWest:
		return geom.Vec2{X: -half, Z: t}
	default:
		return geom.Vec2{X: half, Z: t}
	}
}
