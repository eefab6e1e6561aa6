package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"backtest-engine/src/logger"
	"backtest-engine/src/models"
)

// -----------------------------------------------------------------------------

type fakeControl struct {
	state    string
	pauseOK  bool
	resumeOK bool
	stopped  bool
}

func (f *fakeControl) Pause() bool   { return f.pauseOK }
func (f *fakeControl) Resume() bool  { return f.resumeOK }
func (f *fakeControl) State() string { return f.state }
func (f *fakeControl) Stop()         { f.stopped = true; f.state = "STOPPED" }
func (f *fakeControl) Snapshot() models.MSessionSnapshot {
	return models.MSessionSnapshot{Type: "UPDATE", State: f.state, Day: "2024-03-11"}
}

type fakeProvisioner struct {
	lastBy models.SourceTag
	result models.MOperationResult
}

func (f *fakeProvisioner) AddSymbol(symbol string, ivs []string, inds []models.MIndicatorConfig, by models.SourceTag) models.MOperationResult {
	f.lastBy = by
	return f.result
}
func (f *fakeProvisioner) AddBarInterval(symbol, interval string, by models.SourceTag) models.MOperationResult {
	f.lastBy = by
	return f.result
}
func (f *fakeProvisioner) AddIndicator(symbol string, cfg models.MIndicatorConfig, by models.SourceTag) models.MOperationResult {
	f.lastBy = by
	return f.result
}
func (f *fakeProvisioner) RemoveSymbol(symbol string, by models.SourceTag) models.MOperationResult {
	f.lastBy = by
	return f.result
}

// -----------------------------------------------------------------------------

func newTestServer(t *testing.T) *SessionServer {
	t.Helper()
	cfg := &models.MConfig{Name: "test", Host: "127.0.0.1", Port: 8080}
	return NewSessionServer(cfg, logger.NewLogger(nil, "test"))
}

func doRequest(s *SessionServer, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

// -----------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp["status"])
	require.Equal(t, "STOPPED", resp["state"])
}

// -----------------------------------------------------------------------------

func TestSessionSnapshotComesFromControl(t *testing.T) {
	s := newTestServer(t)
	s.Control = &fakeControl{state: "RUNNING"}

	w := doRequest(s, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snap models.MSessionSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Equal(t, "RUNNING", snap.State)
	require.Equal(t, "2024-03-11", snap.Day)
}

// -----------------------------------------------------------------------------

func TestControlEndpoints(t *testing.T) {
	s := newTestServer(t)

	// No coordinator attached yet.
	require.Equal(t, http.StatusServiceUnavailable, doRequest(s, http.MethodPost, "/api/session/pause", nil).Code)

	ctl := &fakeControl{state: "RUNNING", pauseOK: true}
	s.Control = ctl

	require.Equal(t, http.StatusOK, doRequest(s, http.MethodPost, "/api/session/pause", nil).Code)

	// Rejected transitions surface as conflicts.
	ctl.pauseOK = false
	require.Equal(t, http.StatusConflict, doRequest(s, http.MethodPost, "/api/session/pause", nil).Code)
	ctl.resumeOK = false
	require.Equal(t, http.StatusConflict, doRequest(s, http.MethodPost, "/api/session/resume", nil).Code)

	require.Equal(t, http.StatusOK, doRequest(s, http.MethodDelete, "/api/session", nil).Code)
	require.True(t, ctl.stopped)
}

// -----------------------------------------------------------------------------

func TestProvisioningEndpoints(t *testing.T) {
	s := newTestServer(t)
	prov := &fakeProvisioner{result: models.MOperationResult{Symbol: "AAPL", Success: true}}
	s.Provisioner = prov

	w := doRequest(s, http.MethodPost, "/api/symbols", symbolRequest{
		Symbol: "AAPL", Intervals: []string{"1m"}, By: "strategy",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, models.SourceStrategy, prov.lastBy)

	// Unknown attribution falls back to adhoc.
	doRequest(s, http.MethodPost, "/api/symbols", symbolRequest{Symbol: "AAPL", By: "robot"})
	require.Equal(t, models.SourceAdhoc, prov.lastBy)

	w = doRequest(s, http.MethodPost, "/api/symbols/AAPL/intervals",
		map[string]string{"interval": "5m", "by": "strategy"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodDelete, "/api/symbols/AAPL?by=strategy", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Failed operations surface as unprocessable.
	prov.result = models.MOperationResult{Symbol: "AAPL", Reason: "duplicate"}
	w = doRequest(s, http.MethodPost, "/api/symbols", symbolRequest{Symbol: "AAPL"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// Malformed body is a bad request.
	req := httptest.NewRequest(http.MethodPost, "/api/symbols", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// -----------------------------------------------------------------------------

func TestFilterSnapshot(t *testing.T) {
	snap := &models.MSessionSnapshot{
		Type:  "UPDATE",
		State: "RUNNING",
		Symbols: map[string]models.MSymbolStatus{
			"AAPL": {Symbol: "AAPL"},
			"MSFT": {Symbol: "MSFT"},
		},
	}

	filtered := filterSnapshot(snap, []string{"AAPL"})
	require.Equal(t, "INITIAL", filtered.Type)
	require.Len(t, filtered.Symbols, 1)
	require.Contains(t, filtered.Symbols, "AAPL")

	// An empty filter passes everything through.
	all := filterSnapshot(snap, nil)
	require.Len(t, all.Symbols, 2)

	// The original snapshot is untouched.
	require.Equal(t, "UPDATE", snap.Type)
	require.Len(t, snap.Symbols, 2)
}
