// Command floorview runs a floor locally and draws it in the terminal.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"

	"github.com/steve-haar/door-simulator/internal/observerproto"
	"github.com/steve-haar/door-simulator/internal/render/floor"
	"github.com/steve-haar/door-simulator/internal/sim/tuning"
	"github.com/steve-haar/door-simulator/internal/sim/world"
)

const (
	rateStep  = 10.0
	speedStep = 0.5
	wallStep  = 0.5
)

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (empty: built-in defaults)")
		logPath    = flag.String("log", "", "write logs to this file (the terminal is taken by the view)")
	)
	flag.Parse()

	var logOut io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open log:", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := log.NewWithOptions(logOut, log.Options{Prefix: "floorview", ReportTimestamp: true})

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	w, err := tune.NewWorld("floorview")
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintln(os.Stderr, "screen:", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "screen init:", err)
		os.Exit(1)
	}
	defer screen.Fini()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	if err := run(ctx, screen, w, logger); err != nil {
		screen.Fini()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, screen tcell.Screen, w *world.World, logger *log.Logger) error {
	ticks := make(chan []byte, 4)
	if err := w.JoinObserver(ctx, world.ObserverJoinRequest{SessionID: "floorview", TickOut: ticks}); err != nil {
		return err
	}
	defer w.LeaveObserver("floorview")

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	boot := w.Bootstrap()
	var last *observerproto.TickMsg
	floor.Draw(screen, boot, last)
	screen.Show()

	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-ticks:
			if !ok {
				return nil
			}
			var msg observerproto.TickMsg
			if err := json.Unmarshal(b, &msg); err != nil {
				logger.Warn("decode tick", "err", err)
				continue
			}
			last = &msg
			floor.Draw(screen, boot, last)
			screen.Show()
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				screen.Sync()
			case *tcell.EventKey:
				u, quit := keyUpdate(ev, w.Params())
				if quit {
					return nil
				}
				if u.Empty() {
					continue
				}
				rctx, rcancel := context.WithTimeout(ctx, time.Second)
				p, err := w.RequestParams(rctx, u)
				rcancel()
				if err != nil {
					logger.Warn("params", "err", err)
					continue
				}
				logger.Info("params", "speed", p.SpeedUnitsPerSec, "rate_per_minute", p.RatePerMinute, "wall_height", p.WallHeight)
			}
		}
	}
}

// keyUpdate maps a key press to a parameter change relative to cur.
func keyUpdate(ev *tcell.EventKey, cur world.Params) (u world.ParamUpdate, quit bool) {
	if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
		return u, true
	}
	if ev.Key() != tcell.KeyRune {
		return u, false
	}
	set := func(v float64) *float64 { return &v }
	switch ev.Rune() {
	case 'q':
		return u, true
	case '+', '=':
		u.Rate = set(cur.RatePerMinute + rateStep)
	case '-':
		u.Rate = set(cur.RatePerMinute - rateStep)
	case ']':
		u.Speed = set(cur.SpeedUnitsPerSec + speedStep)
	case '[':
		u.Speed = set(cur.SpeedUnitsPerSec - speedStep)
	case 'W':
		u.WallHeight = set(cur.WallHeight + wallStep)
	case 'w':
		u.WallHeight = set(cur.WallHeight - wallStep)
	case '0':
		u.Rate = set(0)
	}
	if !u.Empty() {
		u.Source = "floorview"
	}
	return u, false
}
