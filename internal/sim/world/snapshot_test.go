package world

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/steve-haar/door-simulator/internal/persistence/snapshot"
)

type frame struct{ delta, elapsed float64 }

func testFrames(n int) []frame {
	out := make([]frame, 0, n)
	elapsed := 0.0
	for i := 0; i < n; i++ {
		d := 0.03 + float64(i%5)*0.006
		elapsed += d
		out = append(out, frame{d, elapsed})
	}
	return out
}

func TestSnapshot_ResumeMatchesUninterruptedRun(t *testing.T) {
	p := Params{SpeedUnitsPerSec: 4, RatePerMinute: 240, WallHeight: 3}
	w1, err := New(WorldConfig{ID: "test", TickRateHz: 20, Seed: 42, Params: p, SnapshotEveryTicks: 120}, testEnv(t))
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	sink := make(chan snapshot.SnapshotV1, 4)
	w1.SetSnapshotSink(sink)

	frames := testFrames(300)
	digests := make([]string, len(frames))
	for i, f := range frames {
		if i == 60 {
			w1.SetRate(90)
		}
		_, digests[i] = w1.StepOnce(f.delta, f.elapsed)
	}
	if len(sink) != 2 {
		t.Fatalf("snapshots=%d want 2", len(sink))
	}
	snap := <-sink
	if snap.Header.Tick != 120 || len(snap.Agents) == 0 || snap.RNGDraws == 0 {
		t.Fatalf("snapshot header=%+v agents=%d draws=%d", snap.Header, len(snap.Agents), snap.RNGDraws)
	}

	path := snapshot.Path(t.TempDir(), snap.Header.Tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	snap, err = snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	w2 := newTestWorld(t, Params{SpeedUnitsPerSec: 1})
	if err := w2.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if w2.CurrentTick() != 120 || w2.Params().RatePerMinute != 90 {
		t.Fatalf("tick=%d params=%+v", w2.CurrentTick(), w2.Params())
	}
	for i := 120; i < len(frames); i++ {
		tick, digest := w2.StepOnce(frames[i].delta, frames[i].elapsed)
		if tick != uint64(i) || digest != digests[i] {
			t.Fatalf("tick %d: resumed digest %s != %s", i, digest, digests[i])
		}
	}
}

func TestSnapshot_DropsWhenSinkFull(t *testing.T) {
	w, err := New(WorldConfig{ID: "test", Seed: 42, SnapshotEveryTicks: 1}, testEnv(t))
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	w.SetSnapshotSink(make(chan snapshot.SnapshotV1, 1))
	for i := 0; i < 3; i++ {
		w.StepOnce(0.05, float64(i+1)*0.05)
	}
	if got := w.Metrics().SnapshotsDropped; got != 2 {
		t.Fatalf("dropped=%d want 2", got)
	}
}

func TestImportSnapshot_Rejects(t *testing.T) {
	base := newTestWorld(t, Params{SpeedUnitsPerSec: 1, RatePerMinute: 600})
	for i := 0; i < 40; i++ {
		base.StepOnce(0.05, float64(i+1)*0.05)
	}
	good := base.ExportSnapshot()

	cases := []struct {
		name string
		mut  func(*snapshot.SnapshotV1)
	}{
		{"world", func(s *snapshot.SnapshotV1) { s.Header.WorldID = "other" }},
		{"seed", func(s *snapshot.SnapshotV1) { s.Seed++ }},
		{"version", func(s *snapshot.SnapshotV1) { s.Header.Version = 9 }},
		{"portal", func(s *snapshot.SnapshotV1) { s.Agents[0].Exit = "nowhere" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := good
			s.Agents = append([]snapshot.AgentV1(nil), good.Agents...)
			tc.mut(&s)
			w := newTestWorld(t, Params{})
			if err := w.ImportSnapshot(s); !errors.Is(err, ErrSnapshotMismatch) {
				t.Fatalf("err=%v want ErrSnapshotMismatch", err)
			}
		})
	}

	if err := base.ImportSnapshot(good); !errors.Is(err, ErrSnapshotMismatch) {
		t.Fatalf("import into running world err=%v", err)
	}
}

func TestRequestSnapshot_FromRunningLoop(t *testing.T) {
	w, err := New(WorldConfig{
		ID:         "test",
		TickRateHz: 100,
		Seed:       42,
		Params:     Params{SpeedUnitsPerSec: 1, RatePerMinute: 1200},
		Clock:      &stepClock{t: time.Unix(0, 0), step: 50 * time.Millisecond},
	}, testEnv(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	var snap snapshot.SnapshotV1
	for len(snap.Agents) == 0 {
		snap, err = w.RequestSnapshot(ctx)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
	}
	if snap.Header.WorldID != "test" || snap.Header.Tick == 0 || snap.Params.RatePerMinute != 1200 {
		t.Fatalf("snapshot header=%+v params=%+v", snap.Header, snap.Params)
	}

	w.Stop()
	<-errCh
	if _, err := w.RequestSnapshot(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("err=%v want ErrStopped", err)
	}
}
