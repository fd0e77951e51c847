package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	datastar "github.com/starfederation/datastar/sdk/go"

	"github.com/steve-haar/door-simulator/internal/observerproto"
	"github.com/steve-haar/door-simulator/internal/sim/world"
)

// Server pushes the live floor to browsers as datastar signal merges.
type Server struct {
	world *world.World
	log   *log.Logger

	// MinInterval throttles merges per client; ticks in between are coalesced.
	MinInterval time.Duration

	nextID atomic.Uint64
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{world: w, log: logger, MinInterval: 100 * time.Millisecond}
}

// floorSignals is merged into the page's signal store on every push.
type floorSignals struct {
	Tick       uint64  `json:"tick"`
	AgentCount int     `json:"agentCount"`
	Speed      float64 `json:"speed"`
	Rate       float64 `json:"ratePerMinute"`
	WallHeight float64 `json:"wallHeight"`
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		sid := fmt.Sprintf("S%d", s.nextID.Add(1))
		tickOut := make(chan []byte, 1)

		joinCtx, cancel := context.WithTimeout(r.Context(), time.Second)
		err := s.world.JoinObserver(joinCtx, world.ObserverJoinRequest{SessionID: sid, TickOut: tickOut})
		cancel()
		if err != nil {
			http.Error(rw, "world unavailable", http.StatusServiceUnavailable)
			return
		}
		defer s.world.LeaveObserver(sid)

		sse := datastar.NewSSE(rw, r)
		var last time.Time
		for {
			select {
			case <-r.Context().Done():
				return
			case b, ok := <-tickOut:
				if !ok {
					return
				}
				if time.Since(last) < s.MinInterval {
					continue
				}
				last = time.Now()
				payload, err := signalsFor(b)
				if err != nil {
					if s.log != nil {
						s.log.Warn("sse encode", "session", sid, "err", err)
					}
					continue
				}
				if err := sse.MergeSignals(payload); err != nil {
					return
				}
			}
		}
	}
}

// signalsFor turns one encoded TickMsg into a datastar signals patch. The full
// frame travels as a JSON string so the page can parse it lazily.
func signalsFor(tick []byte) ([]byte, error) {
	var msg observerproto.TickMsg
	if err := json.Unmarshal(tick, &msg); err != nil {
		return nil, err
	}
	head, err := json.Marshal(floorSignals{
		Tick:       msg.Tick,
		AgentCount: len(msg.Agents),
		Speed:      msg.Params.SpeedUnitsPerSec,
		Rate:       msg.Params.RatePerMinute,
		WallHeight: msg.Params.WallHeight,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Floor json.RawMessage `json:"floor"`
		Frame string          `json:"frame"`
	}{Floor: head, Frame: string(tick)})
}
