package world

import "math"

// Params are the values the parameter surface may change while the loop runs.
type Params struct {
	SpeedUnitsPerSec float64 `json:"speed"`
	RatePerMinute    float64 `json:"rate_per_minute"`
	WallHeight       float64 `json:"wall_height"`
}

// ParamUpdate carries a partial change; nil fields are left alone.
type ParamUpdate struct {
	Speed      *float64 `json:"speed,omitempty"`
	Rate       *float64 `json:"rate_per_minute,omitempty"`
	WallHeight *float64 `json:"wall_height,omitempty"`

	// Source names the parameter surface for the audit log (e.g. "http:127.0.0.1").
	Source string `json:"source,omitempty"`
}

func (u ParamUpdate) Empty() bool {
	return u.Speed == nil && u.Rate == nil && u.WallHeight == nil
}

// Full turns a complete parameter set into an update that sets every field.
func Full(p Params) ParamUpdate {
	return ParamUpdate{Speed: &p.SpeedUnitsPerSec, Rate: &p.RatePerMinute, WallHeight: &p.WallHeight}
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if math.IsInf(v, 1) {
		return math.MaxFloat64
	}
	return v
}

func (p Params) clamped() Params {
	return Params{
		SpeedUnitsPerSec: nonNegative(p.SpeedUnitsPerSec),
		RatePerMinute:    nonNegative(p.RatePerMinute),
		WallHeight:       nonNegative(p.WallHeight),
	}
}

// SetSpeed changes the movement speed. Loop goroutine only.
func (w *World) SetSpeed(v float64) {
	w.params.SpeedUnitsPerSec = nonNegative(v)
	w.publishParams()
}

// SetRate changes the spawn rate and restarts the scheduler at the current
// simulation time if the value actually changed. Loop goroutine only.
func (w *World) SetRate(v float64) {
	v = nonNegative(v)
	if v == w.params.RatePerMinute {
		return
	}
	w.params.RatePerMinute = v
	w.resetSchedule()
	w.publishParams()
}

func (w *World) resetSchedule() {
	w.scheduler.OnRateChanged(w.elapsed)
	w.rateReset = true
}

// SetWallHeight is echoed to renderers; it has no effect on movement. Loop goroutine only.
func (w *World) SetWallHeight(v float64) {
	w.params.WallHeight = nonNegative(v)
	w.publishParams()
}

// ApplyParams applies u between ticks and returns the resulting parameters.
// Loop goroutine only; other goroutines use RequestParams.
func (w *World) ApplyParams(u ParamUpdate) Params {
	before := w.params
	defer func() {
		if w.auditLogger != nil && w.params != before {
			err := w.auditLogger.WriteAudit(AuditEntry{
				Tick:   w.tick.Load(),
				Source: u.Source,
				Before: before,
				After:  w.params,
			})
			if err != nil {
				w.auditLogErrors.Add(1)
			}
		}
	}()
	if u.Speed != nil {
		w.SetSpeed(*u.Speed)
	}
	if u.Rate != nil {
		w.SetRate(*u.Rate)
	}
	if u.WallHeight != nil {
		w.SetWallHeight(*u.WallHeight)
	}
	return w.params
}

// ApplyLogged restores the inputs a logged tick ran with: its parameters and,
// when the entry says so, the scheduler restart that preceded it. Rate changes
// that cancel out between two ticks leave the parameters untouched but still
// restart the scheduler. Loop goroutine only.
func (w *World) ApplyLogged(e TickLogEntry) {
	w.ApplyParams(Full(e.Params))
	if e.RateReset {
		w.resetSchedule()
	}
}

// Params returns the last published parameters. Safe from any goroutine.
func (w *World) Params() Params {
	if w == nil {
		return Params{}
	}
	if p, ok := w.paramsView.Load().(Params); ok {
		return p
	}
	return Params{}
}

func (w *World) publishParams() { w.paramsView.Store(w.params) }
