package strategy

import (
	"sync/atomic"
	"time"
)

// Session is the trading window for one day. Both bounds are fixed at
// construction; ForceExit ends the session early from a signal handler.
type Session struct {
	start time.Time
	end   time.Time
	// skipGating disables the window checks for off-hours test runs.
	skipGating bool
	forceExit  atomic.Bool
	now        func() time.Time
}

// NewSession builds today's window from the configured entry and exit times
// in the exchange timezone.
func NewSession(entryTime, exitTime string, loc *time.Location, skipGating bool) (*Session, error) {
	entry, err := time.ParseInLocation("15:04:05", entryTime, loc)
	if err != nil {
		return nil, err
	}
	exit, err := time.ParseInLocation("15:04:05", exitTime, loc)
	if err != nil {
		return nil, err
	}

	now := time.Now().In(loc)
	y, m, d := now.Date()
	start := time.Date(y, m, d, entry.Hour(), entry.Minute(), entry.Second(), 0, loc)
	end := time.Date(y, m, d, exit.Hour(), exit.Minute(), exit.Second(), 0, loc)

	return &Session{
		start:      start,
		end:        end,
		skipGating: skipGating,
		now:        time.Now,
	}, nil
}

// WithClock overrides the session clock, for tests.
func (s *Session) WithClock(now func() time.Time) *Session {
	s.now = now
	return s
}

// Start returns the window open time.
func (s *Session) Start() time.Time { return s.start }

// End returns the window close time.
func (s *Session) End() time.Time { return s.end }

// ForceExit ends the session early; the watchdog picks it up on its next poll.
func (s *Session) ForceExit() { s.forceExit.Store(true) }

// ForcedExit reports whether an early exit was requested.
func (s *Session) ForcedExit() bool { return s.forceExit.Load() }

// InWindowAt reports whether t falls inside the trading window. Both bounds
// are inclusive; at the exact end instant EndedAt is also true and wins.
func (s *Session) InWindowAt(t time.Time) bool {
	if s.skipGating {
		return true
	}
	return !t.Before(s.start) && !t.After(s.end)
}

// EndedAt reports whether the session is over at t, by clock or by force.
func (s *Session) EndedAt(t time.Time) bool {
	if s.forceExit.Load() {
		return true
	}
	if s.skipGating {
		return false
	}
	return !t.Before(s.end)
}

// InWindow is InWindowAt with the session clock.
func (s *Session) InWindow() bool { return s.InWindowAt(s.now()) }

// Ended is EndedAt with the session clock.
func (s *Session) Ended() bool { return s.EndedAt(s.now()) }
