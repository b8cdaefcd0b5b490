package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, skipGating bool) *Session {
	t.Helper()
	s, err := NewSession("09:35:00", "15:55:00", time.UTC, skipGating)
	require.NoError(t, err)
	return s
}

func TestSessionWindow(t *testing.T) {
	s := newTestSession(t, false)
	day := s.Start()

	before := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, time.UTC)
	inside := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.UTC)
	after := time.Date(day.Year(), day.Month(), day.Day(), 16, 0, 0, 0, time.UTC)

	assert.False(t, s.InWindowAt(before))
	assert.False(t, s.EndedAt(before))

	assert.True(t, s.InWindowAt(inside))
	assert.False(t, s.EndedAt(inside))

	assert.False(t, s.InWindowAt(after))
	assert.True(t, s.EndedAt(after))
}

func TestSessionBoundaries(t *testing.T) {
	s := newTestSession(t, false)

	assert.True(t, s.InWindowAt(s.Start()))
	// Both bounds are inclusive; at the end instant the session also counts
	// as ended, and ended takes precedence in the engine.
	assert.True(t, s.InWindowAt(s.End()))
	assert.True(t, s.EndedAt(s.End()))
	assert.False(t, s.InWindowAt(s.End().Add(time.Second)))
}

func TestSessionForceExit(t *testing.T) {
	s := newTestSession(t, false)
	inside := time.Date(s.Start().Year(), s.Start().Month(), s.Start().Day(), 12, 0, 0, 0, time.UTC)

	assert.False(t, s.EndedAt(inside))
	s.ForceExit()
	assert.True(t, s.EndedAt(inside))
	assert.True(t, s.ForcedExit())
}

func TestSessionSkipGating(t *testing.T) {
	s := newTestSession(t, true)
	after := s.End().Add(time.Hour)

	assert.True(t, s.InWindowAt(after))
	assert.False(t, s.EndedAt(after))

	// Force exit still wins over the gating override.
	s.ForceExit()
	assert.True(t, s.EndedAt(after))
}

func TestSessionRejectsBadTimes(t *testing.T) {
	_, err := NewSession("9:35", "15:55:00", time.UTC, false)
	require.Error(t, err)
}
