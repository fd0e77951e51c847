package ws

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/steve-haar/door-simulator/internal/protocol"
	"github.com/steve-haar/door-simulator/internal/sim/tuning"
	"github.com/steve-haar/door-simulator/internal/sim/world"
)

func startWorld(t *testing.T) (*world.World, context.CancelFunc) {
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
	return w, cancel
}

func dial(t *testing.T, w *world.World) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewServer(w, log.New(io.Discard)).Handler())
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) (protocol.BaseMessage, []byte) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return base, b
}

func TestWS_UpdateRoundTrip(t *testing.T) {
	w, _ := startWorld(t)
	conn := dial(t, w)

	base, b := readMsg(t, conn)
	var first protocol.ParamsMsg
	if err := json.Unmarshal(b, &first); err != nil || base.Type != protocol.TypeParams {
		t.Fatalf("first message=%s err=%v", b, err)
	}
	if first.RatePerMinute != 30 {
		t.Fatalf("initial rate=%v", first.RatePerMinute)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"PARAMS_UPDATE","protocol_version":"0.1","rate_per_minute":90}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	base, b = readMsg(t, conn)
	var got protocol.ParamsMsg
	if err := json.Unmarshal(b, &got); err != nil || base.Type != protocol.TypeParams {
		t.Fatalf("reply=%s err=%v", b, err)
	}
	if got.RatePerMinute != 90 || got.Speed != 2 {
		t.Fatalf("reply=%+v", got)
	}
	if w.Params().RatePerMinute != 90 {
		t.Fatalf("world rate=%v", w.Params().RatePerMinute)
	}
}

func TestWS_RejectsBadMessages(t *testing.T) {
	w, _ := startWorld(t)
	conn := dial(t, w)
	readMsg(t, conn)

	cases := []struct {
		msg  string
		code string
	}{
		{`not json`, protocol.ErrProtoBadRequest},
		{`{"type":"SUBSCRIBE","protocol_version":"0.1"}`, protocol.ErrProtoBadRequest},
		{`{"type":"PARAMS_UPDATE","protocol_version":"0.1","speed":-1}`, protocol.ErrBadRequest},
		{`{"type":"PARAMS_UPDATE","protocol_version":"0.1"}`, protocol.ErrBadRequest},
	}
	for _, c := range cases {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(c.msg)); err != nil {
			t.Fatalf("write: %v", err)
		}
		base, b := readMsg(t, conn)
		var e protocol.ErrorMsg
		if err := json.Unmarshal(b, &e); err != nil || base.Type != protocol.TypeError || e.Code != c.code {
			t.Fatalf("%s: reply=%s want code %s", c.msg, b, c.code)
		}
	}
	if w.Params().SpeedUnitsPerSec != 2 {
		t.Fatalf("rejected update changed speed to %v", w.Params().SpeedUnitsPerSec)
	}
}

func TestWS_StoppedWorld(t *testing.T) {
	w, cancel := startWorld(t)
	conn := dial(t, w)
	readMsg(t, conn)
	cancel()
	<-w.Done()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"PARAMS_UPDATE","protocol_version":"0.1","speed":3}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, b := readMsg(t, conn)
	var e protocol.ErrorMsg
	if err := json.Unmarshal(b, &e); err != nil || e.Code != protocol.ErrWorldStopped {
		t.Fatalf("reply=%s", b)
	}
}

func TestWS_RemoteForbidden(t *testing.T) {
	w, _ := startWorld(t)
	h := NewServer(w, nil).Handler()
	req := httptest.NewRequest(http.MethodGet, "/v1/control/ws", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	rec := httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d want 403", rec.Code)
	}
}
