package world

import (
	"context"
	"errors"
	"fmt"

	"github.com/steve-haar/door-simulator/internal/persistence/snapshot"
	"github.com/steve-haar/door-simulator/internal/sim/agents"
	"github.com/steve-haar/door-simulator/internal/sim/geom"
)

var ErrSnapshotMismatch = errors.New("snapshot does not match world")

// SetSnapshotSink installs the receiver for periodic snapshots. Call before Run.
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) maybeSnapshot(nextTick uint64) {
	every := w.cfg.SnapshotEveryTicks
	if w.snapshotSink == nil || every == 0 || nextTick%every != 0 {
		return
	}
	select {
	case w.snapshotSink <- w.ExportSnapshot():
	default:
		w.snapshotDropped.Add(1)
	}
}

// ExportSnapshot copies the state needed to resume before the next tick.
// Loop goroutine only.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	live := w.registry.Snapshot()
	out := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    w.tick.Load(),
		},
		Seed:     w.cfg.Seed,
		TickRate: w.cfg.TickRateHz,
		Elapsed:  w.elapsed,
		Params: snapshot.ParamsV1{
			Speed:         w.params.SpeedUnitsPerSec,
			RatePerMinute: w.params.RatePerMinute,
			WallHeight:    w.params.WallHeight,
		},
		Scheduler: snapshot.SchedulerV1{
			Created: w.scheduler.Created(),
			Origin:  w.scheduler.Origin(),
		},
		RNGDraws:     w.rngSrc.Draws(),
		Spawned:      w.registry.Spawned(),
		RemovedTotal: w.removedTotal,
		Agents:       make([]snapshot.AgentV1, 0, len(live)),
	}
	for _, a := range live {
		av := snapshot.AgentV1{
			ID:        a.ID,
			Num:       a.Num,
			X:         a.Pos.X,
			Z:         a.Pos.Z,
			Path:      make([]snapshot.WaypointV1, 0, len(a.Path)),
			Entry:     a.EntryPortal,
			Exit:      a.ExitPortal,
			SpawnTick: a.SpawnTick,
		}
		for _, wp := range a.Path {
			av.Path = append(av.Path, snapshot.WaypointV1{X: wp.X, Z: wp.Z, Outside: wp.Outside})
		}
		out.Agents = append(out.Agents, av)
	}
	return out
}

// ImportSnapshot resumes a freshly built world from s. It must be called before
// the first tick and before Run.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("%w: version %d", ErrSnapshotMismatch, s.Header.Version)
	}
	if s.Header.WorldID != w.cfg.ID {
		return fmt.Errorf("%w: world %q, have %q", ErrSnapshotMismatch, s.Header.WorldID, w.cfg.ID)
	}
	if s.Seed != w.cfg.Seed {
		return fmt.Errorf("%w: seed %d, have %d", ErrSnapshotMismatch, s.Seed, w.cfg.Seed)
	}
	if w.tick.Load() != 0 || w.registry.Len() != 0 || w.rngSrc.Draws() != 0 {
		return fmt.Errorf("%w: world already running", ErrSnapshotMismatch)
	}

	reg := agents.NewRegistry(w.cfg.AgentSize)
	for _, av := range s.Agents {
		if _, ok := w.env.Portals.ByID(av.Entry); !ok {
			return fmt.Errorf("%w: agent %s entry portal %q", ErrSnapshotMismatch, av.ID, av.Entry)
		}
		if _, ok := w.env.Portals.ByID(av.Exit); !ok {
			return fmt.Errorf("%w: agent %s exit portal %q", ErrSnapshotMismatch, av.ID, av.Exit)
		}
		a := &agents.Agent{
			ID:          av.ID,
			Num:         av.Num,
			Pos:         geom.Vec2{X: av.X, Z: av.Z},
			Path:        make([]agents.Waypoint, 0, len(av.Path)),
			EntryPortal: av.Entry,
			ExitPortal:  av.Exit,
			SpawnTick:   av.SpawnTick,
		}
		for _, wp := range av.Path {
			a.Path = append(a.Path, agents.Waypoint{X: wp.X, Z: wp.Z, Outside: wp.Outside})
		}
		if err := reg.Restore(a, s.Spawned); err != nil {
			return err
		}
	}

	w.registry = reg
	w.rngSrc.Skip(s.RNGDraws)
	w.scheduler.Restore(s.Scheduler.Created, s.Scheduler.Origin)
	w.params = Params{
		SpeedUnitsPerSec: s.Params.Speed,
		RatePerMinute:    s.Params.RatePerMinute,
		WallHeight:       s.Params.WallHeight,
	}.clamped()
	w.elapsed = s.Elapsed
	w.removedTotal = s.RemovedTotal
	w.tick.Store(s.Header.Tick)
	w.publishParams()
	last := s.Header.Tick
	if last > 0 {
		last--
	}
	w.storeMetrics(last, 0)
	return nil
}

// RequestSnapshot asks the running loop for a snapshot taken between ticks.
func (w *World) RequestSnapshot(ctx context.Context) (snapshot.SnapshotV1, error) {
	resp := make(chan snapshot.SnapshotV1, 1)
	select {
	case <-w.done:
		return snapshot.SnapshotV1{}, ErrStopped
	default:
	}
	select {
	case w.snapshotReq <- resp:
	case <-ctx.Done():
		return snapshot.SnapshotV1{}, ctx.Err()
	case <-w.done:
		return snapshot.SnapshotV1{}, ErrStopped
	}
	select {
	case s := <-resp:
		return s, nil
	case <-ctx.Done():
		return snapshot.SnapshotV1{}, ctx.Err()
	case <-w.done:
		return snapshot.SnapshotV1{}, ErrStopped
	}
}
