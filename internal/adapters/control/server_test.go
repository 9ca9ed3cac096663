package control_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polycopy/internal/adapters/control"
	"github.com/alejandrodnm/polycopy/internal/application/engine"
	"github.com/alejandrodnm/polycopy/internal/domain"
)

// --- mocks ---

type fakeEngine struct {
	killed bool
	resets int
}

func (f *fakeEngine) Status() engine.Status {
	return engine.Status{
		Mode:       "simulation",
		Iterations: 7,
		Sources:    1,
		Risk:       domain.RiskStatus{Enabled: !f.killed, KillSwitch: f.killed, Day: "2026-03-01"},
	}
}

func (f *fakeEngine) Sources() []domain.TrackedSource {
	return []domain.TrackedSource{{
		Address:    "0xabc",
		Name:       "whale",
		Reputation: domain.Reputation{AccuracyPct: 74, TotalTrades: 1347},
		LastPollAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}
}

func (f *fakeEngine) ResetKillSwitch() {
	f.resets++
	f.killed = false
}

type fakeRecent struct {
	limit int
	err   error
}

func (f *fakeRecent) Recent(_ context.Context, limit int) ([]domain.SignalRecord, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []domain.SignalRecord{{
		SignalID:    "sig-1",
		Stage:       domain.StageExecuted,
		Disposition: domain.DispositionExecuted,
		MarketID:    "0xmarket",
		Side:        domain.SideA,
		Confidence:  89,
		Capital:     44.5,
	}}, nil
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h := control.New(":0", &fakeEngine{}, nil).Router()
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz").Code)
}

func TestStatus(t *testing.T) {
	h := control.New(":0", &fakeEngine{killed: true}, nil).Router()

	rec := do(t, h, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var st engine.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "simulation", st.Mode)
	assert.Equal(t, 7, st.Iterations)
	assert.True(t, st.Risk.KillSwitch)
}

func TestSources(t *testing.T) {
	h := control.New(":0", &fakeEngine{}, nil).Router()

	rec := do(t, h, http.MethodGet, "/api/sources")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Sources []map[string]any `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sources, 1)
	assert.Equal(t, "whale", body.Sources[0]["name"])
	assert.Equal(t, 74.0, body.Sources[0]["accuracy_pct"])
}

func TestResetKillSwitch(t *testing.T) {
	eng := &fakeEngine{killed: true}
	h := control.New(":0", eng, nil).Router()

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/kill-switch/reset").Code)

	rec := do(t, h, http.MethodPost, "/api/kill-switch/reset")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, eng.resets)

	var risk domain.RiskStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &risk))
	assert.True(t, risk.Enabled)
}

func TestSignals(t *testing.T) {
	recent := &fakeRecent{}
	h := control.New(":0", &fakeEngine{}, recent).Router()

	rec := do(t, h, http.MethodGet, "/api/signals?limit=10000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, recent.limit)
	assert.Contains(t, rec.Body.String(), `"signal_id":"sig-1"`)

	do(t, h, http.MethodGet, "/api/signals")
	assert.Equal(t, 50, recent.limit)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/signals?limit=abc").Code)
}

func TestSignals_Errors(t *testing.T) {
	h := control.New(":0", &fakeEngine{}, nil).Router()
	assert.Equal(t, http.StatusNotImplemented, do(t, h, http.MethodGet, "/api/signals").Code)

	h = control.New(":0", &fakeEngine{}, &fakeRecent{err: errors.New("disk")}).Router()
	assert.Equal(t, http.StatusInternalServerError, do(t, h, http.MethodGet, "/api/signals").Code)
}
