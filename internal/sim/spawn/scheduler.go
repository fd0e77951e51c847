package spawn

import "math"

// Scheduler converts simulation time and a per-minute rate into the number of
// agents due this tick. It counts from an origin so that variable frame timing
// does not make the long-run rate drift.
type Scheduler struct {
	created int
	origin  float64
}

// Tick returns how many agents should be created now so that the total since the
// origin equals floor((elapsed-origin) / (60/ratePerMinute)).
func (s *Scheduler) Tick(elapsed, ratePerMinute float64) int {
	if ratePerMinute <= 0 || math.IsNaN(ratePerMinute) {
		return 0
	}
	adjusted := elapsed - s.origin
	if adjusted <= 0 {
		return 0
	}
	secondsPerAgent := 60 / ratePerMinute
	expected := math.Floor(adjusted / secondsPerAgent)
	if math.IsInf(expected, 0) || math.IsNaN(expected) {
		return 0
	}
	due := int(expected) - s.created
	if due < 0 {
		return 0
	}
	s.created += due
	return due
}

// OnRateChanged restarts counting at now, so a new rate never produces a backlog
// burst for time that passed under the old one.
func (s *Scheduler) OnRateChanged(now float64) {
	s.created = 0
	s.origin = now
}

func (s *Scheduler) Created() int    { return s.created }
func (s *Scheduler) Origin() float64 { return s.origin }

// Restore sets the counter state, for worlds resumed from a snapshot.
func (s *Scheduler) Restore(created int, origin float64) {
	s.created = created
	s.origin = origin
}
