package world

import (
	"context"
	"strings"
)

// ObserverJoinRequest registers a read-only session that receives one encoded
// TickMsg per tick on TickOut. The world closes TickOut when the session leaves.
type ObserverJoinRequest struct {
	SessionID  string
	TickOut    chan []byte
	EventsOnly bool
}

type observerClient struct {
	id         string
	tickOut    chan []byte
	eventsOnly bool
}

func (w *World) JoinObserver(ctx context.Context, req ObserverJoinRequest) error {
	select {
	case <-w.done:
		return ErrStopped
	default:
	}
	select {
	case w.observerJoin <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return ErrStopped
	}
}

// LeaveObserver never blocks once the loop has exited.
func (w *World) LeaveObserver(sessionID string) {
	select {
	case w.observerLeave <- sessionID:
	case <-w.done:
	}
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	id := strings.TrimSpace(req.SessionID)
	if w == nil || id == "" || req.TickOut == nil {
		return
	}
	// Replace existing session id if any.
	if old := w.observers[id]; old != nil {
		close(old.tickOut)
	}
	w.observers[id] = &observerClient{
		id:         id,
		tickOut:    req.TickOut,
		eventsOnly: req.EventsOnly,
	}
}

func (w *World) handleObserverLeave(sessionID string) {
	if sessionID == "" {
		return
	}
	c := w.observers[sessionID]
	if c == nil {
		return
	}
	delete(w.observers, sessionID)
	close(c.tickOut)
}

func (w *World) closeObservers() {
	for id, c := range w.observers {
		delete(w.observers, id)
		close(c.tickOut)
	}
}

func (w *World) broadcastTick(res TickResult) {
	if len(w.observers) == 0 {
		return
	}
	var full, events []byte
	for _, c := range w.observers {
		if c.eventsOnly {
			if len(res.Created) == 0 && len(res.Removed) == 0 {
				continue
			}
			if events == nil {
				b, err := EncodeTick(res, true)
				if err != nil {
					return
				}
				events = b
			}
			sendLatest(c.tickOut, events)
			continue
		}
		if full == nil {
			b, err := EncodeTick(res, false)
			if err != nil {
				return
			}
			full = b
		}
		sendLatest(c.tickOut, full)
	}
}
