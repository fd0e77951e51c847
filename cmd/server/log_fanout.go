package main

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/steve-haar/door-simulator/internal/sim/world"
)

// sinkErrorLog reports failed log writes at most once per interval. Failures in
// between are counted and carried on the next line.
type sinkErrorLog struct {
	logger *log.Logger
	every  time.Duration
	now    func() time.Time

	mu         sync.Mutex
	last       time.Time
	suppressed int
}

func newSinkErrorLog(logger *log.Logger, every time.Duration) *sinkErrorLog {
	return &sinkErrorLog{logger: logger, every: every, now: time.Now}
}

func (s *sinkErrorLog) report(sink string, tick uint64, err error) {
	if s == nil || s.logger == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !s.last.IsZero() && now.Sub(s.last) < s.every {
		s.suppressed++
		return
	}
	s.logger.Error("write failed", "sink", sink, "tick", tick, "suppressed", s.suppressed, "err", err)
	s.last = now
	s.suppressed = 0
}

// multiTickLogger writes to the JSONL log (a) and the index (b). A failing sink
// does not stop the other one; the joined error goes back to the world, which
// counts it.
type multiTickLogger struct {
	a    world.TickLogger
	b    world.TickLogger
	errs *sinkErrorLog
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	var errA, errB error
	if m.a != nil {
		if errA = m.a.WriteTick(entry); errA != nil {
			m.errs.report("events", entry.Tick, errA)
		}
	}
	if m.b != nil {
		if errB = m.b.WriteTick(entry); errB != nil {
			m.errs.report("index", entry.Tick, errB)
		}
	}
	return errors.Join(errA, errB)
}

type multiAuditLogger struct {
	a    world.AuditLogger
	b    world.AuditLogger
	errs *sinkErrorLog
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	var errA, errB error
	if m.a != nil {
		if errA = m.a.WriteAudit(entry); errA != nil {
			m.errs.report("audit", entry.Tick, errA)
		}
	}
	if m.b != nil {
		if errB = m.b.WriteAudit(entry); errB != nil {
			m.errs.report("index", entry.Tick, errB)
		}
	}
	return errors.Join(errA, errB)
}
