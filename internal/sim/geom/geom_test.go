package geom

import (
	"math"
	"testing"
)

func TestManhattan(t *testing.T) {
	cases := []struct {
		a, b Vec2
		want float64
	}{
		{Vec2{}, Vec2{}, 0},
		{Vec2{X: 1, Z: 1}, Vec2{X: -1, Z: -1}, 4},
		{Vec2{X: 10}, Vec2{X: 8.5, Z: 0.25}, 1.75},
	}
	for _, c := range cases {
		if got := Manhattan(c.a, c.b); math.Abs(got-c.want) > 1e-12 {
			t.Fatalf("Manhattan(%v,%v)=%v want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestVec2Arithmetic(t *testing.T) {
	a := Vec2{X: 3, Z: 4}
	if a.Len() != 5 {
		t.Fatalf("len=%v want 5", a.Len())
	}
	got := a.Add(Vec2{X: 1}).Sub(Vec2{Z: 2}).Scale(2)
	if got != (Vec2{X: 8, Z: 4}) {
		t.Fatalf("got %+v", got)
	}
	if (Vec2{X: math.NaN()}).Finite() || (Vec2{Z: math.Inf(1)}).Finite() {
		t.Fatalf("non-finite vector reported finite")
	}
}

func TestBoxAround(t *testing.T) {
	b := BoxAround(Vec2{X: 2, Z: -1}, 0.9, Size3{W: 0.6, H: 1.8, D: 0.4})
	if math.Abs(b.Min[0]-1.7) > 1e-12 || math.Abs(b.Max[0]-2.3) > 1e-12 || math.Abs(b.Min[2]+1.2) > 1e-12 {
		t.Fatalf("footprint=%v..%v", b.Min, b.Max)
	}
	if b.Min[1] != 0 || math.Abs(b.Max[1]-1.8) > 1e-12 {
		t.Fatalf("y extent=%v..%v", b.Min[1], b.Max[1])
	}
	if !b.ContainsXZ(Vec2{X: 2.2, Z: -1.1}) || b.ContainsXZ(Vec2{X: 2.5, Z: -1}) {
		t.Fatalf("footprint containment wrong: %+v", b)
	}
}
