package control

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/steve-haar/door-simulator/internal/protocol"
	"github.com/steve-haar/door-simulator/internal/sim/world"
)

const maxBodyBytes = 4 << 10

// Server is the HTTP parameter surface: it validates updates and hands them to
// the world loop, which applies them between ticks.
type Server struct {
	world *world.World
	log   *log.Logger

	AllowRemote bool
	Timeout     time.Duration
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{world: w, log: logger, Timeout: 2 * time.Second}
}

func (s *Server) ParamsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.writeParams(rw, http.StatusOK, s.world.Params())
		case http.MethodPost:
			if !s.AllowRemote && !IsLoopbackRemote(r.RemoteAddr) {
				writeError(rw, http.StatusForbidden, protocol.ErrNoPermission, "remote parameter changes are disabled")
				return
			}
			s.handleUpdate(rw, r)
		default:
			rw.Header().Set("Allow", "GET, POST")
			writeError(rw, http.StatusMethodNotAllowed, protocol.ErrBadRequest, "method not allowed")
		}
	}
}

func (s *Server) handleUpdate(rw http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil || len(raw) > maxBodyBytes {
		writeError(rw, http.StatusBadRequest, protocol.ErrProtoBadRequest, "unreadable or oversized body")
		return
	}
	msg, err := protocol.DecodeParamsUpdate(raw)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.Timeout)
	defer cancel()
	u := UpdateFromMsg(msg)
	u.Source = "http:" + r.RemoteAddr
	p, err := s.world.RequestParams(ctx, u)
	if err != nil {
		status, code, msg := ErrorStatus(err)
		writeError(rw, status, code, msg)
		return
	}
	if s.log != nil {
		s.log.Info("params updated", "speed", p.SpeedUnitsPerSec, "rate_per_minute", p.RatePerMinute, "wall_height", p.WallHeight, "remote", r.RemoteAddr)
	}
	s.writeParams(rw, http.StatusOK, p)
}

// ErrorStatus maps a RequestParams error onto an HTTP status and wire error code.
func ErrorStatus(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, world.ErrStopped):
		return http.StatusServiceUnavailable, protocol.ErrWorldStopped, "world stopped"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, protocol.ErrTimeout, "world did not apply update in time"
	default:
		return http.StatusInternalServerError, protocol.ErrInternal, err.Error()
	}
}

// UpdateFromMsg maps a validated wire message onto a world update.
func UpdateFromMsg(m protocol.ParamsUpdateMsg) world.ParamUpdate {
	return world.ParamUpdate{Speed: m.Speed, Rate: m.RatePerMinute, WallHeight: m.WallHeight}
}

func (s *Server) writeParams(rw http.ResponseWriter, status int, p world.Params) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(ParamsMessage(s.world.CurrentTick(), p))
}

func ParamsMessage(tick uint64, p world.Params) protocol.ParamsMsg {
	return protocol.ParamsMsg{
		Type:            protocol.TypeParams,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Speed:           p.SpeedUnitsPerSec,
		RatePerMinute:   p.RatePerMinute,
		WallHeight:      p.WallHeight,
	}
}

func writeError(rw http.ResponseWriter, status int, code, msg string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(protocol.NewError(code, msg))
}

// IsLoopbackRemote reports whether an http.Request RemoteAddr is a loopback address.
func IsLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
