package dashboard

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/stanley_straddle/internal/models"
	"github.com/eddiefleurent/stanley_straddle/internal/storage"
)

func newTestServer(t *testing.T, token string) (*Server, *storage.Journal) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	journal := storage.NewJournal("")
	return NewServer(journal, logger, 0, token), journal
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("X-Auth-Token", "secret")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session?token=secret", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLegsEndpoint(t *testing.T) {
	srv, journal := newTestServer(t, "")

	leg := models.NewLegState(models.SideCall, 5900, 6000, 2)
	require.NoError(t, leg.RecordFill("c-1", 10.5, 13.65))
	journal.PublishLeg(leg.Snapshot())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/legs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var legs map[string]models.LegState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &legs))
	require.Contains(t, legs, "call")
	assert.Equal(t, 10.5, legs["call"].FillPrice)
}

func TestEventsEndpoint(t *testing.T) {
	srv, journal := newTestServer(t, "")
	journal.AppendEvent("Call order placed at 10.50")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var events []storage.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "Call order placed at 10.50", events[0].Text)
}

func TestSessionEndpoint(t *testing.T) {
	srv, journal := newTestServer(t, "")
	journal.SetStrikes(&models.StrikeSet{ATM: 5900, CallHedge: 6000})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		SessionID string            `json:"session_id"`
		Strikes   *models.StrikeSet `json:"strikes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.SessionID)
	require.NotNil(t, body.Strikes)
	assert.Equal(t, 5900.0, body.Strikes.ATM)
}
