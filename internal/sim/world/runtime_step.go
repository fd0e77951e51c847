package world

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/steve-haar/door-simulator/internal/observerproto"
	"github.com/steve-haar/door-simulator/internal/sim/agents"
	"github.com/steve-haar/door-simulator/internal/sim/navigation"
	"github.com/steve-haar/door-simulator/internal/sim/routing"
)

// FrameInput is the host clock reading for one tick, in seconds.
type FrameInput struct {
	Delta   float64
	Elapsed float64
}

// TickResult is what renderers need after a tick: lifecycle events plus the
// position of every live agent.
type TickResult struct {
	Tick    uint64
	Delta   float64
	Elapsed float64
	Params  Params

	Created []observerproto.AgentState
	Removed []string
	Agents  []observerproto.AgentState

	Digest string
}

// StepFrame runs one tick: existing agents move (or retire) first, then new
// agents are spawned, so a new agent is seen at its spawn point before it moves.
// Loop goroutine only; replays and tests call it directly.
func (w *World) StepFrame(in FrameInput) TickResult {
	start := time.Now()
	nowTick := w.tick.Load()

	delta := in.Delta
	if math.IsNaN(delta) || delta < 0 {
		delta = 0
	}
	if in.Elapsed > w.elapsed {
		w.elapsed = in.Elapsed
	}
	p := w.params
	rateReset := w.rateReset
	w.rateReset = false
	movement := delta * p.SpeedUnitsPerSec

	var removed []string
	for _, a := range w.registry.Snapshot() {
		if navigation.Step(w.registry, a, movement) == navigation.Removed {
			removed = append(removed, a.ID)
		}
	}
	w.removedTotal += uint64(len(removed))

	due := w.scheduler.Tick(w.elapsed, p.RatePerMinute)
	var created []observerproto.AgentState
	for i := 0; i < due; i++ {
		a := w.spawnAssigned(w.assigner.AssignPath(), nowTick)
		created = append(created, w.agentState(a))
	}

	live := w.registry.Snapshot()
	states := make([]observerproto.AgentState, 0, len(live))
	for _, a := range live {
		states = append(states, w.agentState(a))
	}

	res := TickResult{
		Tick:    nowTick,
		Delta:   delta,
		Elapsed: w.elapsed,
		Params:  p,
		Created: created,
		Removed: removed,
		Agents:  states,
		Digest:  w.stateDigest(nowTick),
	}

	if w.tickLogger != nil {
		err := w.tickLogger.WriteTick(TickLogEntry{
			Tick:      res.Tick,
			Delta:     res.Delta,
			Elapsed:   res.Elapsed,
			Params:    res.Params,
			RateReset: rateReset,
			Created:   res.Created,
			Removed:   res.Removed,
			Agents:    len(res.Agents),
			Digest:    res.Digest,
		})
		if err != nil {
			w.tickLogErrors.Add(1)
		}
	}
	w.broadcastTick(res)

	next := w.tick.Add(1)
	w.maybeSnapshot(next)
	w.storeMetrics(nowTick, time.Since(start))
	return res
}

// spawnAssigned registers one routed agent. The scheduler has already counted
// it and Route never yields an empty path, so a refusal is a broken invariant.
func (w *World) spawnAssigned(as routing.Assignment, tick uint64) *agents.Agent {
	a, err := w.registry.Spawn(as.Start, as.Path, tick)
	if err != nil {
		panic(fmt.Sprintf("world %s: spawn of scheduled agent: %v", w.cfg.ID, err))
	}
	a.EntryPortal = w.assigner.Portal(as.Entry).ID
	a.ExitPortal = w.assigner.Portal(as.Exit).ID
	return a
}

// StepOnce advances the world by a single tick with the given inputs and returns
// the tick number and digest. It is primarily intended for deterministic replays.
func (w *World) StepOnce(delta, elapsed float64) (tick uint64, digest string) {
	r := w.StepFrame(FrameInput{Delta: delta, Elapsed: elapsed})
	return r.Tick, r.Digest
}

func (w *World) agentState(a *agents.Agent) observerproto.AgentState {
	s := observerproto.AgentState{
		ID:          a.ID,
		Pos:         a.Pos,
		Y:           w.registry.HalfHeight(),
		Bounds:      a.Bounds,
		PathLen:     len(a.Path),
		EntryPortal: a.EntryPortal,
		ExitPortal:  a.ExitPortal,
	}
	if t, ok := a.Target(); ok {
		s.Target = t.Pos()
		s.Outside = t.Outside
	}
	return s
}

// EncodeTick renders a tick as the observer wire message.
func EncodeTick(res TickResult, eventsOnly bool) ([]byte, error) {
	msg := observerproto.TickMsg{
		Type:            "TICK",
		ProtocolVersion: observerproto.Version,
		Tick:            res.Tick,
		Elapsed:         res.Elapsed,
		Params:          wireParams(res.Params),
		Created:         res.Created,
		Removed:         res.Removed,
	}
	if !eventsOnly {
		msg.Agents = res.Agents
	}
	return json.Marshal(msg)
}
