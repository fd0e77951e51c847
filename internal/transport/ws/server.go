// Package ws is the websocket parameter surface: a client sends PARAMS_UPDATE
// messages and gets a PARAMS or ERROR reply for each.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/steve-haar/door-simulator/internal/protocol"
	"github.com/steve-haar/door-simulator/internal/sim/world"
	"github.com/steve-haar/door-simulator/internal/transport/control"
)

const maxMessageBytes = 4 << 10

type Server struct {
	world *world.World
	log   *log.Logger

	// AllowRemote lifts the loopback-only restriction.
	AllowRemote bool
	Timeout     time.Duration

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world:   w,
		log:     logger,
		Timeout: 2 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.AllowRemote && !control.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxMessageBytes)

		source := "ws:" + r.RemoteAddr
		id := s.nextID.Add(1)
		if s.log != nil {
			s.log.Debug("control session opened", "session", id, "remote", r.RemoteAddr)
		}

		// Current values first so the client can render its controls.
		if err := s.writeParams(conn, s.world.Params()); err != nil {
			return
		}

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if err := s.handle(r.Context(), conn, msg, source); err != nil {
				break
			}
		}
		if s.log != nil {
			s.log.Debug("control session closed", "session", id)
		}
	}
}

// handle answers one client message; the returned error is a write failure.
func (s *Server) handle(ctx context.Context, conn *websocket.Conn, msg []byte, source string) error {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return writeJSON(conn, protocol.NewError(protocol.ErrProtoBadRequest, "bad json"))
	}
	if base.Type != protocol.TypeParamsUpdate {
		return writeJSON(conn, protocol.NewError(protocol.ErrProtoBadRequest, "unsupported type "+base.Type))
	}
	m, err := protocol.DecodeParamsUpdate(msg)
	if err != nil {
		return writeJSON(conn, protocol.NewError(protocol.ErrBadRequest, err.Error()))
	}

	u := control.UpdateFromMsg(m)
	u.Source = source
	rctx, cancel := context.WithTimeout(ctx, s.Timeout)
	p, err := s.world.RequestParams(rctx, u)
	cancel()
	if err != nil {
		_, code, text := control.ErrorStatus(err)
		return writeJSON(conn, protocol.NewError(code, text))
	}
	if s.log != nil {
		s.log.Info("params updated", "speed", p.SpeedUnitsPerSec, "rate_per_minute", p.RatePerMinute, "wall_height", p.WallHeight, "source", source)
	}
	return s.writeParams(conn, p)
}

func (s *Server) writeParams(conn *websocket.Conn, p world.Params) error {
	return writeJSON(conn, control.ParamsMessage(s.world.CurrentTick(), p))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
