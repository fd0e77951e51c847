package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/steve-haar/door-simulator/internal/sim/tuning"
	"github.com/steve-haar/door-simulator/internal/sim/world"
)

var errDiskFull = errors.New("no space left on device")

type failingLogger struct{}

func (failingLogger) WriteTick(world.TickLogEntry) error { return errDiskFull }
func (failingLogger) WriteAudit(world.AuditEntry) error  { return errDiskFull }

func TestMultiTickLogger_FailingSinkIsLoggedAndReturned(t *testing.T) {
	var buf bytes.Buffer
	now := time.Unix(1000, 0)
	errs := newSinkErrorLog(log.New(&buf), 10*time.Second)
	errs.now = func() time.Time { return now }

	idx := &countingLogger{}
	tl := multiTickLogger{a: failingLogger{}, b: idx, errs: errs}
	for i := 0; i < 3; i++ {
		err := tl.WriteTick(world.TickLogEntry{Tick: uint64(i)})
		if !errors.Is(err, errDiskFull) {
			t.Fatalf("tick %d: err=%v want disk full", i, err)
		}
		now = now.Add(time.Second)
	}
	if idx.ticks != 3 {
		t.Fatalf("index sink got %d ticks, want 3", idx.ticks)
	}
	if n := strings.Count(buf.String(), "write failed"); n != 1 {
		t.Fatalf("logged %d lines within one interval, want 1:\n%s", n, buf.String())
	}

	now = now.Add(10 * time.Second)
	_ = tl.WriteTick(world.TickLogEntry{Tick: 3})
	out := buf.String()
	if n := strings.Count(out, "write failed"); n != 2 {
		t.Fatalf("logged %d lines after the interval, want 2:\n%s", n, out)
	}
	if !strings.Contains(out, "suppressed=2") || !strings.Contains(out, "sink=events") {
		t.Fatalf("missing fields:\n%s", out)
	}
}

func TestServerFanOut_CountsFailuresInMetrics(t *testing.T) {
	w, err := tuning.Defaults().NewWorld("floor_1")
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	errs := newSinkErrorLog(log.New(&bytes.Buffer{}), time.Minute)
	w.SetTickLogger(multiTickLogger{a: failingLogger{}, errs: errs})
	w.SetAuditLogger(multiAuditLogger{a: failingLogger{}, errs: errs})

	rate := 97.0
	w.ApplyParams(world.ParamUpdate{Rate: &rate})
	w.StepOnce(0.1, 0.1)
	w.StepOnce(0.1, 0.2)

	m := w.Metrics()
	if m.TickLogErrors != 2 || m.AuditLogErrors != 1 {
		t.Fatalf("tick errors=%d audit errors=%d", m.TickLogErrors, m.AuditLogErrors)
	}
	var buf bytes.Buffer
	writeWorldMetrics(&buf, "floor_1", m)
	if want := `door_sim_log_write_errors_total{world="floor_1",sink="tick"} 2`; !strings.Contains(buf.String(), want) {
		t.Fatalf("metrics missing %q:\n%s", want, buf.String())
	}
}
