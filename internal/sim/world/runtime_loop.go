package world

import (
	"context"
	"time"
)

type paramsReq struct {
	update ParamUpdate
	resp   chan Params
}

func (w *World) Run(ctx context.Context) error {
	defer close(w.done)

	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := w.cfg.Clock.Now()
	for {
		select {
		case <-ctx.Done():
			w.closeObservers()
			return ctx.Err()
		case <-w.stop:
			w.closeObservers()
			return nil
		case req := <-w.paramsReq:
			p := w.ApplyParams(req.update)
			req.resp <- p
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case resp := <-w.snapshotReq:
			resp <- w.ExportSnapshot()
		case <-ticker.C:
			now := w.cfg.Clock.Now()
			delta := now.Sub(last).Seconds()
			last = now
			if delta < 0 {
				delta = 0
			}
			if delta > w.cfg.MaxFrameDelta {
				delta = w.cfg.MaxFrameDelta
			}
			w.StepFrame(FrameInput{Delta: delta, Elapsed: w.elapsed + delta})
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// Done is closed once Run has returned.
func (w *World) Done() <-chan struct{} { return w.done }

// RequestParams hands u to the loop, which applies it between ticks, and waits for
// the resulting parameter set.
func (w *World) RequestParams(ctx context.Context, u ParamUpdate) (Params, error) {
	resp := make(chan Params, 1)
	select {
	case <-w.done:
		return Params{}, ErrStopped
	default:
	}
	select {
	case w.paramsReq <- paramsReq{update: u, resp: resp}:
	case <-ctx.Done():
		return Params{}, ctx.Err()
	case <-w.done:
		return Params{}, ErrStopped
	}
	select {
	case p := <-resp:
		return p, nil
	case <-ctx.Done():
		return Params{}, ctx.Err()
	case <-w.done:
		return Params{}, ErrStopped
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
