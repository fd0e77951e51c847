package main

import (
	"fmt"
	"io"

	"github.com/steve-haar/door-simulator/internal/persistence/indexdb"
	"github.com/steve-haar/door-simulator/internal/sim/world"
)

// Minimal Prometheus exposition format.
func writeWorldMetrics(rw io.Writer, worldID string, m world.WorldMetrics) {
	fmt.Fprintf(rw, "# HELP door_sim_tick Current world tick.\n")
	fmt.Fprintf(rw, "# TYPE door_sim_tick gauge\n")
	fmt.Fprintf(rw, "door_sim_tick{world=%q} %d\n", worldID, m.Tick)

	fmt.Fprintf(rw, "# HELP door_sim_elapsed_seconds Simulated seconds since start.\n")
	fmt.Fprintf(rw, "# TYPE door_sim_elapsed_seconds gauge\n")
	fmt.Fprintf(rw, "door_sim_elapsed_seconds{world=%q} %.3f\n", worldID, m.Elapsed)

	fmt.Fprintf(rw, "# HELP door_sim_agents Agents currently on the floor.\n")
	fmt.Fprintf(rw, "# TYPE door_sim_agents gauge\n")
	fmt.Fprintf(rw, "door_sim_agents{world=%q} %d\n", worldID, m.Agents)

	fmt.Fprintf(rw, "# HELP door_sim_spawned_total Agents created since start.\n")
	fmt.Fprintf(rw, "# TYPE door_sim_spawned_total counter\n")
	fmt.Fprintf(rw, "door_sim_spawned_total{world=%q} %d\n", worldID, m.SpawnedTotal)

	fmt.Fprintf(rw, "# HELP door_sim_removed_total Agents removed after their last waypoint.\n")
	fmt.Fprintf(rw, "# TYPE door_sim_removed_total counter\n")
	fmt.Fprintf(rw, "door_sim_removed_total{world=%q} %d\n", worldID, m.RemovedTotal)

	fmt.Fprintf(rw, "# HELP door_sim_observers Connected observer sessions.\n")
	fmt.Fprintf(rw, "# TYPE door_sim_observers gauge\n")
	fmt.Fprintf(rw, "door_sim_observers{world=%q} %d\n", worldID, m.Observers)

	fmt.Fprintf(rw, "# HELP door_sim_param Current runtime parameter values.\n")
	fmt.Fprintf(rw, "# TYPE door_sim_param gauge\n")
	fmt.Fprintf(rw, "door_sim_param{world=%q,param=%q} %.6f\n", worldID, "speed", m.Params.SpeedUnitsPerSec)
	fmt.Fprintf(rw, "door_sim_param{world=%q,param=%q} %.6f\n", worldID, "rate_per_minute", m.Params.RatePerMinute)
	fmt.Fprintf(rw, "door_sim_param{world=%q,param=%q} %.6f\n", worldID, "wall_height", m.Params.WallHeight)

	fmt.Fprintf(rw, "# HELP door_sim_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE door_sim_step_ms gauge\n")
	fmt.Fprintf(rw, "door_sim_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

	fmt.Fprintf(rw, "# HELP door_sim_snapshots_dropped_total Snapshots skipped because the writer was busy.\n")
	fmt.Fprintf(rw, "# TYPE door_sim_snapshots_dropped_total counter\n")
	fmt.Fprintf(rw, "door_sim_snapshots_dropped_total{world=%q} %d\n", worldID, m.SnapshotsDropped)

	fmt.Fprintf(rw, "# HELP door_sim_log_write_errors_total Tick and audit entries a log sink failed to write.\n")
	fmt.Fprintf(rw, "# TYPE door_sim_log_write_errors_total counter\n")
	fmt.Fprintf(rw, "door_sim_log_write_errors_total{world=%q,sink=%q} %d\n", worldID, "tick", m.TickLogErrors)
	fmt.Fprintf(rw, "door_sim_log_write_errors_total{world=%q,sink=%q} %d\n", worldID, "audit", m.AuditLogErrors)
}

func writeIndexMetrics(rw io.Writer, worldID string, s indexdb.Stats) {
	fmt.Fprintf(rw, "# HELP door_sim_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE door_sim_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "door_sim_index_queue_depth{world=%q} %d\n", worldID, s.QueueDepth)

	fmt.Fprintf(rw, "# HELP door_sim_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE door_sim_index_dropped_total counter\n")
	fmt.Fprintf(rw, "door_sim_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "tick", s.DropTickTotal)
	fmt.Fprintf(rw, "door_sim_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "audit", s.DropAuditTotal)
	fmt.Fprintf(rw, "door_sim_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "snapshot", s.DropSnapTotal)
}

func writeBusMetrics(rw io.Writer, worldID string, b *paramsBus) {
	if b == nil || b.watcher == nil {
		return
	}
	fmt.Fprintf(rw, "# HELP door_sim_params_bus_total Parameter entries read from the KV bucket.\n")
	fmt.Fprintf(rw, "# TYPE door_sim_params_bus_total counter\n")
	fmt.Fprintf(rw, "door_sim_params_bus_total{world=%q,result=%q} %d\n", worldID, "applied", b.watcher.Applied())
	fmt.Fprintf(rw, "door_sim_params_bus_total{world=%q,result=%q} %d\n", worldID, "rejected", b.watcher.Rejected())
}
