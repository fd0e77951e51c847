package world

import "time"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick    uint64  `json:"tick"`
	Elapsed float64 `json:"elapsed"`

	Agents       int    `json:"agents"`
	SpawnedTotal uint64 `json:"spawned_total"`
	RemovedTotal uint64 `json:"removed_total"`
	Observers    int    `json:"observers"`

	Params Params `json:"params"`

	StepMS float64 `json:"step_ms"`

	SnapshotsDropped uint64 `json:"snapshots_dropped"`
	TickLogErrors    uint64 `json:"tick_log_errors"`
	AuditLogErrors   uint64 `json:"audit_log_errors"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) storeMetrics(nowTick uint64, took time.Duration) {
	w.metrics.Store(WorldMetrics{
		Tick:         nowTick,
		Elapsed:      w.elapsed,
		Agents:       w.registry.Len(),
		SpawnedTotal: w.registry.Spawned(),
		RemovedTotal: w.removedTotal,
		Observers:    len(w.observers),
		Params:       w.params,
		StepMS:       float64(took.Microseconds()) / 1000,

		SnapshotsDropped: w.snapshotDropped.Load(),
		TickLogErrors:    w.tickLogErrors.Load(),
		AuditLogErrors:   w.auditLogErrors.Load(),
	})
}
