package natskv

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/steve-haar/door-simulator/internal/sim/tuning"
	"github.com/steve-haar/door-simulator/internal/sim/world"
)

func startJetStream(t *testing.T) jetstream.JetStream {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		t.Fatalf("nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatalf("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)
	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}
	return js
}

func runningWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := tuning.Defaults().NewWorld("test")
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-w.Done()
	})
	return w
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatcher_AppliesUpdates(t *testing.T) {
	js := startJetStream(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kv, err := OpenBucket(ctx, js, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// Second open finds the existing bucket.
	if _, err := OpenBucket(ctx, js, DefaultBucket); err != nil {
		t.Fatalf("reopen: %v", err)
	}

	w := runningWorld(t)
	wt := NewWatcher(kv, w, log.New(io.Discard))
	if err := wt.Publish(ctx, w.Params()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := wt.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	e, err := kv.Get(ctx, DefaultKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(e.Value()) == 0 {
		t.Fatalf("seed entry empty")
	}

	if _, err := kv.Put(ctx, DefaultKey, []byte(`{"type":"PARAMS_UPDATE","protocol_version":"0.1","speed":-3}`)); err != nil {
		t.Fatalf("put bad: %v", err)
	}
	if _, err := kv.Put(ctx, DefaultKey, []byte(`{"type":"PARAMS_UPDATE","protocol_version":"0.1","rate_per_minute":240}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	waitFor(t, "rate update", func() bool { return w.Params().RatePerMinute == 240 })
	waitFor(t, "counters", func() bool { return wt.Applied() == 1 && wt.Rejected() == 1 })
	if p := w.Params(); p.SpeedUnitsPerSec != 2 {
		t.Fatalf("rejected entry changed speed: %+v", p)
	}
}
