package routing

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/steve-haar/door-simulator/internal/sim/geom"
	"github.com/steve-haar/door-simulator/internal/sim/portal"
)

func twoPortals() *portal.Registry {
	return portal.NewRegistry([]portal.Portal{
		{
			ID:            "a",
			Position:      geom.Vec2{X: 0, Z: -10},
			EntryOffset:   geom.Vec2{Z: 1},
			ExitOffset:    geom.Vec2{Z: -1},
			StagingOffset: geom.Vec2{Z: 4},
		},
		{
			ID:            "b",
			Position:      geom.Vec2{X: 10, Z: 0},
			EntryOffset:   geom.Vec2{X: -1},
			ExitOffset:    geom.Vec2{X: 1},
			StagingOffset: geom.Vec2{X: -4},
		},
	})
}

func TestNewAssigner_RejectsSinglePortal(t *testing.T) {
	for _, n := range []int{0, 1} {
		reg := portal.NewRegistry(make([]portal.Portal, n))
		_, err := NewAssigner(reg, rand.New(rand.NewSource(1)))
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("portals=%d err=%v want ErrConfiguration", n, err)
		}
	}
	if _, err := NewAssigner(nil, rand.New(rand.NewSource(1))); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("nil registry err=%v", err)
	}
}

func TestAssigner_PortalsAreDistinct(t *testing.T) {
	ps := make([]portal.Portal, 5)
	for i := range ps {
		ps[i].ID = string(rune('a' + i))
	}
	a, err := NewAssigner(portal.NewRegistry(ps), rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	seen := map[[2]int]int{}
	for i := 0; i < 5000; i++ {
		e, x := a.Pick()
		if e == x {
			t.Fatalf("entry == exit == %d", e)
		}
		if e < 0 || e >= 5 || x < 0 || x >= 5 {
			t.Fatalf("out of range pair (%d,%d)", e, x)
		}
		seen[[2]int{e, x}]++
	}
	// Every ordered pair should turn up.
	if len(seen) != 20 {
		t.Fatalf("distinct pairs=%d want 20", len(seen))
	}
}

func TestAssigner_PathFormula(t *testing.T) {
	a, err := NewAssigner(twoPortals(), rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 0; i < 20; i++ {
		got := a.AssignPath()
		if len(got.Path) != 2 {
			t.Fatalf("path len=%d want 2", len(got.Path))
		}
		if got.Entry == got.Exit {
			t.Fatalf("same portal %d", got.Entry)
		}
		entry, exit := a.Portal(got.Entry), a.Portal(got.Exit)
		wantStart := entry.Position.Add(entry.EntryOffset)
		if got.Start != wantStart {
			t.Fatalf("start=%+v want %+v", got.Start, wantStart)
		}
		stage := entry.Position.Add(entry.EntryOffset).Sub(entry.StagingOffset)
		if got.Path[0].X != stage.X || got.Path[0].Z != stage.Z || !got.Path[0].Outside {
			t.Fatalf("staging=%+v want %+v outside", got.Path[0], stage)
		}
		end := exit.Position.Add(exit.ExitOffset)
		if got.Path[1].X != end.X || got.Path[1].Z != end.Z || got.Path[1].Outside {
			t.Fatalf("final=%+v want %+v", got.Path[1], end)
		}
	}
}

func TestRoute_ExplicitPair(t *testing.T) {
	reg := twoPortals()
	ps := reg.List()
	got := Route(ps[0], ps[1], 0, 1)
	if got.Start != (geom.Vec2{X: 0, Z: -9}) {
		t.Fatalf("start=%+v", got.Start)
	}
	if got.Path[0].Z != -13 || got.Path[1].X != 11 {
		t.Fatalf("path=%+v", got.Path)
	}
}

func TestCountingSource_SkipReproducesStream(t *testing.T) {
	src := NewCountingSource(42)
	a, err := NewAssigner(twoPortals(), rand.New(src))
	if err != nil {
		t.Fatalf("assigner: %v", err)
	}
	for i := 0; i < 17; i++ {
		a.Pick()
	}
	draws := src.Draws()
	if draws == 0 {
		t.Fatalf("no draws counted")
	}

	resumed := NewCountingSource(42)
	resumed.Skip(draws)
	b, err := NewAssigner(twoPortals(), rand.New(resumed))
	if err != nil {
		t.Fatalf("assigner: %v", err)
	}
	for i := 0; i < 50; i++ {
		ei, xi := a.Pick()
		ej, xj := b.Pick()
		if ei != ej || xi != xj {
			t.Fatalf("pick %d diverged: (%d,%d) vs (%d,%d)", i, ei, xi, ej, xj)
		}
	}
	if src.Draws() != resumed.Draws() {
		t.Fatalf("draws=%d resumed=%d", src.Draws(), resumed.Draws())
	}
}
