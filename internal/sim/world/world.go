package world

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/steve-haar/door-simulator/internal/observerproto"
	"github.com/steve-haar/door-simulator/internal/persistence/snapshot"
	"github.com/steve-haar/door-simulator/internal/sim/agents"
	"github.com/steve-haar/door-simulator/internal/sim/portal"
	"github.com/steve-haar/door-simulator/internal/sim/routing"
	"github.com/steve-haar/door-simulator/internal/sim/spawn"
)

// ErrStopped is returned to callers waiting on a world loop that has exited.
var ErrStopped = errors.New("world stopped")

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg WorldConfig
	env portal.Environment

	tick    atomic.Uint64
	elapsed float64

	registry  *agents.Registry
	scheduler spawn.Scheduler
	assigner  *routing.Assigner
	rngSrc    *routing.CountingSource
	params    Params

	// rateReset is set when the scheduler restarted since the last tick and is
	// written to that tick's log entry.
	rateReset bool

	removedTotal uint64

	paramsReq     chan paramsReq
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	snapshotReq   chan chan snapshot.SnapshotV1
	stop          chan struct{}
	stopOnce      sync.Once
	done          chan struct{}

	observers map[string]*observerClient

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink; receives a copy of the state every
	// cfg.SnapshotEveryTicks ticks. Sends never block the loop.
	snapshotSink    chan<- snapshot.SnapshotV1
	snapshotDropped atomic.Uint64

	tickLogErrors  atomic.Uint64
	auditLogErrors atomic.Uint64

	metrics    atomic.Value // WorldMetrics
	paramsView atomic.Value // Params
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// AuditEntry records one effective parameter change. Tick is the tick the new
// values first apply to.
type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Source string `json:"source,omitempty"`
	Before Params `json:"before"`
	After  Params `json:"after"`
}

// TickLogEntry is one line of the lifecycle log. Delta, Elapsed and Params are the
// complete input of a tick, so a fresh world fed the same entries reproduces Digest.
type TickLogEntry struct {
	Tick    uint64  `json:"tick"`
	Delta   float64 `json:"delta"`
	Elapsed float64 `json:"elapsed"`
	Params  Params  `json:"params"`

	// RateReset is true when the spawn scheduler restarted at Elapsed of the
	// previous tick before this one ran.
	RateReset bool `json:"rate_reset,omitempty"`

	Created []observerproto.AgentState `json:"created,omitempty"`
	Removed []string                   `json:"removed,omitempty"`
	Agents  int                        `json:"agents"`
	Digest  string                     `json:"digest"`
}

// New builds a world over a prepared environment. An environment that cannot route
// agents (fewer than two portals) is rejected here, never at spawn time.
func New(cfg WorldConfig, env portal.Environment) (*World, error) {
	cfg.applyDefaults()

	src := routing.NewCountingSource(cfg.Seed)
	assigner, err := routing.NewAssigner(env.Portals, rand.New(src))
	if err != nil {
		return nil, fmt.Errorf("world %s: %w", cfg.ID, err)
	}

	w := &World{
		cfg:           cfg,
		env:           env,
		registry:      agents.NewRegistry(cfg.AgentSize),
		assigner:      assigner,
		rngSrc:        src,
		params:        cfg.Params,
		paramsReq:     make(chan paramsReq, 16),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerLeave: make(chan string, 16),
		snapshotReq:   make(chan chan snapshot.SnapshotV1, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		observers:     map[string]*observerClient{},
	}
	w.publishParams()
	w.metrics.Store(WorldMetrics{Params: w.params})
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

func (w *World) Config() WorldConfig {
	if w == nil {
		return WorldConfig{}
	}
	return w.cfg
}

// Environment is immutable after New and safe to read from any goroutine.
func (w *World) Environment() portal.Environment { return w.env }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Elapsed is the simulation time reached by the last tick. Loop goroutine only.
func (w *World) Elapsed() float64 { return w.elapsed }

// Agents exposes the registry for in-process hosts and tests. Loop goroutine only.
func (w *World) Agents() *agents.Registry { return w.registry }

// Bootstrap describes the static scene plus the current parameters.
func (w *World) Bootstrap() observerproto.BootstrapResponse {
	p := w.Params()
	return observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		Tick:            w.CurrentTick(),
		WorldParams: observerproto.WorldParams{
			TickRateHz:   w.cfg.TickRateHz,
			FloorSize:    w.env.FloorSize,
			AgentSize:    w.cfg.AgentSize,
			PortalWidth:  w.env.PortalWidth,
			PortalHeight: w.env.PortalHeight,
			PortalDepth:  w.env.PortalDepth,
			Seed:         w.cfg.Seed,
		},
		Params:  wireParams(p),
		Walls:   append([]portal.Segment(nil), w.env.Walls...),
		Portals: w.env.Portals.List(),
	}
}

func wireParams(p Params) observerproto.Params {
	return observerproto.Params{
		SpeedUnitsPerSec: p.SpeedUnitsPerSec,
		RatePerMinute:    p.RatePerMinute,
		WallHeight:       p.WallHeight,
	}
}
