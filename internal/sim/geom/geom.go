package geom

import "math"

// Vec2 is a point or direction on the ground plane. Height is never simulated.
type Vec2 struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

func (a Vec2) Add(b Vec2) Vec2 { return Vec2{X: a.X + b.X, Z: a.Z + b.Z} }

func (a Vec2) Sub(b Vec2) Vec2 { return Vec2{X: a.X - b.X, Z: a.Z - b.Z} }

func (a Vec2) Scale(s float64) Vec2 { return Vec2{X: a.X * s, Z: a.Z * s} }

func (a Vec2) Len() float64 { return math.Hypot(a.X, a.Z) }

func (a Vec2) Finite() bool {
	return !math.IsNaN(a.X) && !math.IsInf(a.X, 0) && !math.IsNaN(a.Z) && !math.IsInf(a.Z, 0)
}

// Manhattan is |dx| + |dz|.
func Manhattan(a, b Vec2) float64 {
	return math.Abs(a.X-b.X) + math.Abs(a.Z-b.Z)
}

// Size3 is the extent of a box along x (W), y (H) and z (D).
type Size3 struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
	D float64 `json:"d"`
}

// AABB is an axis-aligned box in world space; index 0/1/2 are x/y/z.
type AABB struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// BoxAround centres a box of the given size on (p.X, y, p.Z).
func BoxAround(p Vec2, y float64, size Size3) AABB {
	hw, hh, hd := size.W/2, size.H/2, size.D/2
	return AABB{
		Min: [3]float64{p.X - hw, y - hh, p.Z - hd},
		Max: [3]float64{p.X + hw, y + hh, p.Z + hd},
	}
}

// ContainsXZ reports whether p lies inside the box footprint.
func (b AABB) ContainsXZ(p Vec2) bool {
	return p.X >= b.Min[0] && p.X <= b.Max[0] && p.Z >= b.Min[2] && p.Z <= b.Max[2]
}
