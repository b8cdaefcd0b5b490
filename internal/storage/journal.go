// Package storage persists the session journal: strikes, leg snapshots, and a
// timeline of events. The journal is also the read model for the watchdog and
// the dashboard, so everything behind the mutex must stay copy-safe.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eddiefleurent/stanley_straddle/internal/models"
)

// Event is one line in the session timeline.
type Event struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// sessionData is the JSON document written to disk.
type sessionData struct {
	SessionID   string                     `json:"session_id"`
	StartedAt   time.Time                  `json:"started_at"`
	Strikes     *models.StrikeSet          `json:"strikes,omitempty"`
	Legs        map[string]models.LegState `json:"legs"`
	Events      []Event                    `json:"events"`
	LastUpdated time.Time                  `json:"last_updated"`
}

// Journal is the mutex-protected session record. Legs publish snapshots into
// it; the watchdog and dashboard read from it.
type Journal struct {
	mu   sync.RWMutex
	path string
	data *sessionData
}

// NewJournal creates a journal persisted at path. An empty path keeps the
// journal in memory only.
func NewJournal(path string) *Journal {
	return &Journal{
		path: path,
		data: &sessionData{
			SessionID: uuid.NewString(),
			StartedAt: time.Now().UTC(),
			Legs:      make(map[string]models.LegState),
		},
	}
}

// SessionID returns the identifier assigned to this session.
func (j *Journal) SessionID() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.data.SessionID
}

// StartedAt returns when the session record was created.
func (j *Journal) StartedAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.data.StartedAt
}

// SetStrikes records the strike set derived at session open.
func (j *Journal) SetStrikes(s *models.StrikeSet) {
	j.mu.Lock()
	defer j.mu.Unlock()
	cp := *s
	j.data.Strikes = &cp
	j.data.LastUpdated = time.Now().UTC()
}

// Strikes returns a copy of the recorded strike set, or nil before entry.
func (j *Journal) Strikes() *models.StrikeSet {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.data.Strikes == nil {
		return nil
	}
	cp := *j.data.Strikes
	return &cp
}

// PublishLeg records the latest snapshot of one leg.
func (j *Journal) PublishLeg(state models.LegState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.data.Legs[string(state.Side)] = state
	j.data.LastUpdated = time.Now().UTC()
}

// LegSnapshot returns the last published state for a side. The second return
// is false if the leg has never published.
func (j *Journal) LegSnapshot(side models.Side) (models.LegState, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	state, ok := j.data.Legs[string(side)]
	return state, ok
}

// Legs returns copies of every published leg state.
func (j *Journal) Legs() map[string]models.LegState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make(map[string]models.LegState, len(j.data.Legs))
	for k, v := range j.data.Legs {
		out[k] = v
	}
	return out
}

// AppendEvent adds a timeline entry and persists the journal.
func (j *Journal) AppendEvent(text string) {
	j.mu.Lock()
	j.data.Events = append(j.data.Events, Event{Time: time.Now().UTC(), Text: text})
	j.data.LastUpdated = time.Now().UTC()
	j.mu.Unlock()

	// Persistence failures are not worth interrupting trading for.
	_ = j.Save()
}

// Events returns a copy of the session timeline.
func (j *Journal) Events() []Event {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Event, len(j.data.Events))
	copy(out, j.data.Events)
	return out
}

// Save writes the journal atomically via a temp file rename.
func (j *Journal) Save() error {
	j.mu.RLock()
	if j.path == "" {
		j.mu.RUnlock()
		return nil
	}
	data, err := json.MarshalIndent(j.data, "", "  ")
	path := j.path
	j.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshaling journal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating journal directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".journal-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp journal: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp journal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp journal: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing journal: %w", err)
	}
	return nil
}
