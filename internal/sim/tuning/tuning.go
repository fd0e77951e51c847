package tuning

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/steve-haar/door-simulator/internal/sim/geom"
	"github.com/steve-haar/door-simulator/internal/sim/portal"
	"github.com/steve-haar/door-simulator/internal/sim/world"
)

// MaxRatePerMinute bounds the spawn rate accepted from any parameter surface.
const MaxRatePerMinute = 60000

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	TickRateHz     int     `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	Seed           int64   `yaml:"seed" json:"seed"`
	MaxFrameDeltaS float64 `yaml:"max_frame_delta_s" json:"max_frame_delta_s"`

	// SnapshotEveryTicks is the snapshot cadence; 0 disables snapshots.
	SnapshotEveryTicks uint64 `yaml:"snapshot_every_ticks" json:"snapshot_every_ticks"`

	SpawnRatePerMinute float64 `yaml:"spawn_rate_per_minute" json:"spawn_rate_per_minute"`
	AgentSpeed         float64 `yaml:"agent_speed" json:"agent_speed"`
	WallHeight         float64 `yaml:"wall_height" json:"wall_height"`

	FloorSize float64    `yaml:"floor_size" json:"floor_size"`
	AgentSize AgentSize  `yaml:"agent_size" json:"agent_size"`
	Portal    PortalSpec `yaml:"portal" json:"portal"`
	Portals   []Door     `yaml:"portals" json:"portals"`
}

type AgentSize struct {
	W float64 `yaml:"w" json:"w"`
	H float64 `yaml:"h" json:"h"`
	D float64 `yaml:"d" json:"d"`
}

type PortalSpec struct {
	Width           float64 `yaml:"width" json:"width"`
	Height          float64 `yaml:"height" json:"height"`
	Depth           float64 `yaml:"depth" json:"depth"`
	EntryDistance   float64 `yaml:"entry_distance" json:"entry_distance"`
	ExitDistance    float64 `yaml:"exit_distance" json:"exit_distance"`
	StagingDistance float64 `yaml:"staging_distance" json:"staging_distance"`
}

type Door struct {
	ID    string  `yaml:"id" json:"id"`
	Wall  string  `yaml:"wall" json:"wall"`
	Along float64 `yaml:"along" json:"along"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "0.1",
		TickRateHz:         30,
		Seed:               1337,
		MaxFrameDeltaS:     0.5,
		SnapshotEveryTicks: 900,
		SpawnRatePerMinute: 30,
		AgentSpeed:         2,
		WallHeight:         3,
		FloorSize:          40,
		AgentSize:          AgentSize{W: 0.5, H: 1.8, D: 0.5},
		Portal: PortalSpec{
			Width:           2,
			Height:          2.5,
			Depth:           0.5,
			EntryDistance:   1,
			ExitDistance:    1,
			StagingDistance: 3,
		},
		Portals: []Door{
			{ID: "north_door", Wall: "north"},
			{ID: "east_door", Wall: "east"},
			{ID: "south_door", Wall: "south"},
			{ID: "west_door", Wall: "west"},
		},
	}
}

// Load reads a tuning file over Defaults. An empty path yields the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize fills zero values that have a sensible default.
func (t *Tuning) Normalize() {
	d := Defaults()
	if t.TickRateHz == 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.MaxFrameDeltaS == 0 {
		t.MaxFrameDeltaS = d.MaxFrameDeltaS
	}
	if t.AgentSize == (AgentSize{}) {
		t.AgentSize = d.AgentSize
	}
	for i := range t.Portals {
		t.Portals[i].ID = strings.TrimSpace(t.Portals[i].ID)
		t.Portals[i].Wall = strings.ToLower(strings.TrimSpace(t.Portals[i].Wall))
	}
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz must be in 1..1000: %d", t.TickRateHz)
	}
	if !finite(t.SpawnRatePerMinute) || t.SpawnRatePerMinute < 0 || t.SpawnRatePerMinute > MaxRatePerMinute {
		return fmt.Errorf("spawn_rate_per_minute must be in 0..%d: %v", MaxRatePerMinute, t.SpawnRatePerMinute)
	}
	if !finite(t.AgentSpeed) || t.AgentSpeed < 0 {
		return fmt.Errorf("agent_speed must be non-negative: %v", t.AgentSpeed)
	}
	if !finite(t.WallHeight) || t.WallHeight < 0 {
		return fmt.Errorf("wall_height must be non-negative: %v", t.WallHeight)
	}
	if !finite(t.FloorSize) || t.FloorSize <= 0 {
		return fmt.Errorf("floor_size must be positive: %v", t.FloorSize)
	}
	if t.AgentSize.W <= 0 || t.AgentSize.H <= 0 || t.AgentSize.D <= 0 {
		return fmt.Errorf("agent_size must be positive: %+v", t.AgentSize)
	}
	p := t.Portal
	if p.Height <= 0 || p.Depth < 0 {
		return fmt.Errorf("portal height must be positive and depth non-negative")
	}
	if p.EntryDistance < 0 || p.ExitDistance < 0 || p.StagingDistance < 0 {
		return fmt.Errorf("portal distances must be non-negative")
	}
	if p.EntryDistance >= t.FloorSize/2 {
		return fmt.Errorf("portal.entry_distance %v puts spawn points outside the floor", p.EntryDistance)
	}
	if len(t.Portals) < 2 {
		return fmt.Errorf("need at least 2 portals, have %d", len(t.Portals))
	}
	// Wall names, ids, fit and overlap are checked by the builder.
	if _, err := portal.Build(t.Layout()); err != nil {
		return err
	}
	return nil
}

func (t Tuning) Layout() portal.Layout {
	specs := make([]portal.Spec, 0, len(t.Portals))
	for _, d := range t.Portals {
		specs = append(specs, portal.Spec{ID: d.ID, Wall: portal.Wall(d.Wall), Along: d.Along})
	}
	return portal.Layout{
		FloorSize:       t.FloorSize,
		WallHeight:      t.WallHeight,
		PortalWidth:     t.Portal.Width,
		PortalHeight:    t.Portal.Height,
		PortalDepth:     t.Portal.Depth,
		EntryDistance:   t.Portal.EntryDistance,
		ExitDistance:    t.Portal.ExitDistance,
		StagingDistance: t.Portal.StagingDistance,
		Portals:         specs,
	}
}

func (t Tuning) WorldConfig(id string) world.WorldConfig {
	return world.WorldConfig{
		ID:            id,
		TickRateHz:    t.TickRateHz,
		Seed:          t.Seed,
		AgentSize:     geom.Size3{W: t.AgentSize.W, H: t.AgentSize.H, D: t.AgentSize.D},
		MaxFrameDelta: t.MaxFrameDeltaS,

		SnapshotEveryTicks: t.SnapshotEveryTicks,
		Params: world.Params{
			SpeedUnitsPerSec: t.AgentSpeed,
			RatePerMinute:    t.SpawnRatePerMinute,
			WallHeight:       t.WallHeight,
		},
	}
}

// NewWorld builds the environment and the world it drives.
func (t Tuning) NewWorld(id string) (*world.World, error) {
	env, err := portal.Build(t.Layout())
	if err != nil {
		return nil, fmt.Errorf("build environment: %w", err)
	}
	return world.New(t.WorldConfig(id), env)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
