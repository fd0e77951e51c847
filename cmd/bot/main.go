package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/steve-haar/door-simulator/internal/protocol"
)

// sweep is the range the bot draws parameters from. A zero max leaves that
// parameter alone.
type sweep struct {
	MinRate, MaxRate   float64
	MinSpeed, MaxSpeed float64
}

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/control/ws", "control ws url")
		every    = flag.Duration("every", 10*time.Second, "interval between updates")
		count    = flag.Int("count", 0, "stop after N updates (0: run until interrupted)")
		seed     = flag.Int64("seed", 0, "random seed (0: time based)")
		minRate  = flag.Float64("min_rate", 0, "lowest spawn rate per minute")
		maxRate  = flag.Float64("max_rate", 120, "highest spawn rate per minute (0: leave rate alone)")
		minSpeed = flag.Float64("min_speed", 1, "lowest agent speed")
		maxSpeed = flag.Float64("max_speed", 0, "highest agent speed (0: leave speed alone)")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stdout, log.Options{
		Prefix:          "bot",
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	sw := sweep{MinRate: *minRate, MaxRate: *maxRate, MinSpeed: *minSpeed, MaxSpeed: *maxSpeed}
	if sw.MaxRate <= 0 && sw.MaxSpeed <= 0 {
		logger.Fatal("nothing to sweep: set -max_rate or -max_speed")
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatal("dial", "url", *url, "err", err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = run(ctx, conn, rand.New(rand.NewSource(*seed)), sw, *every, *count, logger)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("session", "err", err)
	}
}

// run reads the initial PARAMS, then sends one update per interval and waits for
// its reply. It returns after count updates, or when ctx ends.
func run(ctx context.Context, conn *websocket.Conn, r *rand.Rand, sw sweep, every time.Duration, count int, logger *log.Logger) error {
	cur, err := readParams(conn)
	if err != nil {
		return fmt.Errorf("initial params: %w", err)
	}
	logger.Info("connected", "tick", cur.Tick, "rate", cur.RatePerMinute, "speed", cur.Speed)

	t := time.NewTicker(every)
	defer t.Stop()
	for sent := 0; count <= 0 || sent < count; sent++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		u := nextUpdate(r, sw)
		if err := conn.WriteJSON(u); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		p, err := readParams(conn)
		if err != nil {
			return err
		}
		logger.Info("params", "tick", p.Tick, "rate", p.RatePerMinute, "speed", p.Speed)
	}
	return nil
}

func nextUpdate(r *rand.Rand, sw sweep) protocol.ParamsUpdateMsg {
	u := protocol.ParamsUpdateMsg{Type: protocol.TypeParamsUpdate, ProtocolVersion: protocol.Version}
	if sw.MaxRate > 0 {
		v := between(r, sw.MinRate, sw.MaxRate)
		u.RatePerMinute = &v
	}
	if sw.MaxSpeed > 0 {
		v := between(r, sw.MinSpeed, sw.MaxSpeed)
		u.Speed = &v
	}
	return u
}

// between draws from [lo, hi] rounded to a tenth; lo above hi collapses to hi.
func between(r *rand.Rand, lo, hi float64) float64 {
	if lo < 0 {
		lo = 0
	}
	if lo > hi {
		lo = hi
	}
	v := lo + r.Float64()*(hi-lo)
	return float64(int64(v*10+0.5)) / 10
}

func readParams(conn *websocket.Conn) (protocol.ParamsMsg, error) {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return protocol.ParamsMsg{}, err
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.ParamsMsg{}, err
	}
	switch base.Type {
	case protocol.TypeParams:
		var p protocol.ParamsMsg
		err := json.Unmarshal(msg, &p)
		return p, err
	case protocol.TypeError:
		var e protocol.ErrorMsg
		if err := json.Unmarshal(msg, &e); err != nil {
			return protocol.ParamsMsg{}, err
		}
		return protocol.ParamsMsg{}, fmt.Errorf("%s: %s", e.Code, e.Message)
	default:
		return protocol.ParamsMsg{}, fmt.Errorf("unexpected message type %q", base.Type)
	}
}
