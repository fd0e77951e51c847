package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/steve-haar/door-simulator/internal/sim/tuning"
)

func TestSignalsFor(t *testing.T) {
	tick := []byte(`{"type":"TICK","protocol_version":"0.1","tick":9,"elapsed":1.5,"params":{"speed":2,"rate_per_minute":30,"wall_height":3},"agents":[{"id":"A000001"}]}`)
	b, err := signalsFor(tick)
	if err != nil {
		t.Fatalf("signals: %v", err)
	}
	var got struct {
		Floor floorSignals `json:"floor"`
		Frame string       `json:"frame"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	if got.Floor.Tick != 9 || got.Floor.AgentCount != 1 || got.Floor.Rate != 30 || got.Frame != string(tick) {
		t.Fatalf("signals=%+v", got)
	}
	// DEL stays raw in a JSON string; Go quoting would turn it into \x7f.
	odd := []byte("{\"type\":\"TICK\",\"tick\":1,\"agents\":[{\"id\":\"A\x7f1\"}]}")
	b, err = signalsFor(odd)
	if err != nil {
		t.Fatalf("signals: %v", err)
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("frame with control byte is not valid JSON: %s: %v", b, err)
	}
	if got.Frame != string(odd) {
		t.Fatalf("frame=%q want %q", got.Frame, odd)
	}

	if _, err := signalsFor([]byte("nope")); err == nil {
		t.Fatalf("expected error for bad tick")
	}
}

func TestHandler_StreamsMergeSignals(t *testing.T) {
	tu := tuning.Defaults()
	tu.TickRateHz = 50
	w, err := tu.NewWorld("test")
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-w.Done()
	}()
	go func() { _ = w.Run(ctx) }()

	s := NewServer(w, log.New(io.Discard))
	s.MinInterval = 0
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer reqCancel()
	req, _ := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content-type=%q", ct)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var sawEvent, sawFloor bool
	for sc.Scan() && !(sawEvent && sawFloor) {
		line := sc.Text()
		if strings.Contains(line, "merge-signals") {
			sawEvent = true
		}
		if strings.HasPrefix(line, "data:") && strings.Contains(line, `"floor"`) {
			sawFloor = true
		}
	}
	if !sawEvent || !sawFloor {
		t.Fatalf("event=%v floor=%v err=%v", sawEvent, sawFloor, sc.Err())
	}
}

func TestHandler_StoppedWorld(t *testing.T) {
	w, err := tuning.Defaults().NewWorld("test")
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = w.Run(ctx)

	rec := httptest.NewRecorder()
	NewServer(w, nil).Handler()(rec, httptest.NewRequest(http.MethodGet, "/v1/floor/sse", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
}
