package world

import (
	"testing"

	"github.com/steve-haar/door-simulator/internal/sim/portal"
)

func testEnv(t *testing.T, walls ...portal.Wall) portal.Environment {
	t.Helper()
	if len(walls) == 0 {
		walls = []portal.Wall{portal.WallNorth, portal.WallEast, portal.WallSouth, portal.WallWest}
	}
	l := portal.Layout{
		FloorSize:       20,
		WallHeight:      3,
		PortalWidth:     2,
		PortalHeight:    2.5,
		PortalDepth:     0.5,
		EntryDistance:   1,
		ExitDistance:    1,
		StagingDistance: 3,
	}
	for _, w := range walls {
		l.Portals = append(l.Portals, portal.Spec{Wall: w})
	}
	env, err := portal.Build(l)
	if err != nil {
		t.Fatalf("build env: %v", err)
	}
	return env
}

func newTestWorld(t *testing.T, p Params) *World {
	t.Helper()
	w, err := New(WorldConfig{ID: "test", TickRateHz: 20, Seed: 42, Params: p}, testEnv(t))
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}
