package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hft-trading-bot/internal/auth"
	"hft-trading-bot/internal/events"
	"hft-trading-bot/internal/hft"
)

func newTestServer(t *testing.T, authConfig auth.Config) *Server {
	t.Helper()
	engine := hft.NewEngine(hft.DefaultConfig(), zerolog.Nop())
	cfg := DefaultConfig()
	cfg.ProductionMode = true
	return NewServer(cfg, engine, nil, events.NewEventBus(), authConfig, zerolog.Nop())
}

func doRequest(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, auth.Config{})

	w := doRequest(s, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", resp["status"])
	}
}

func TestProcessSignalWithoutMarketData(t *testing.T) {
	s := newTestServer(t, auth.Config{})

	w := doRequest(s, http.MethodPost, "/api/signals/process", hft.Candidate{
		Symbol:    "BTCUSDT",
		Direction: hft.DirectionLong,
		Strength:  0.8,
		Entry:     100,
		Stop:      99,
		Target:    103,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp struct {
		Accepted bool `json:"accepted"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Accepted {
		t.Error("Expected rejection with no market data")
	}
}

func TestProcessSignalRejectsMissingSymbol(t *testing.T) {
	s := newTestServer(t, auth.Config{})

	w := doRequest(s, http.MethodPost, "/api/signals/process", hft.Candidate{Direction: hft.DirectionLong})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestStateAndConfigEndpoints(t *testing.T) {
	s := newTestServer(t, auth.Config{})

	w := doRequest(s, http.MethodGet, "/api/state", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var state hft.State
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("Failed to parse state: %v", err)
	}
	if state.CircuitBreakerActive {
		t.Error("Fresh engine should not have an active breaker")
	}

	w = doRequest(s, http.MethodGet, "/api/config", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var cfg hft.Config
	if err := json.Unmarshal(w.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}
	if cfg.RequiredConfirmations != hft.DefaultConfig().RequiredConfirmations {
		t.Errorf("Unexpected required confirmations: %d", cfg.RequiredConfirmations)
	}
}

func TestPositionLifecycle(t *testing.T) {
	s := newTestServer(t, auth.Config{})

	w := doRequest(s, http.MethodPost, "/api/positions", map[string]interface{}{
		"symbol": "BTCUSDT",
		"size":   0.5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var state hft.State
	json.Unmarshal(w.Body.Bytes(), &state)
	if len(state.OpenPositions) != 1 {
		t.Fatalf("Expected 1 open position, got %d", len(state.OpenPositions))
	}

	w = doRequest(s, http.MethodDelete, "/api/positions/BTCUSDT", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	state = hft.State{}
	json.Unmarshal(w.Body.Bytes(), &state)
	if len(state.OpenPositions) != 0 {
		t.Errorf("Expected 0 open positions, got %d", len(state.OpenPositions))
	}
}

func TestEquityUpdateValidation(t *testing.T) {
	s := newTestServer(t, auth.Config{})

	w := doRequest(s, http.MethodPost, "/api/equity", map[string]interface{}{"equity": -5.0})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative equity, got %d", w.Code)
	}

	w = doRequest(s, http.MethodPost, "/api/equity", map[string]interface{}{"equity": 10000.0})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var state hft.State
	json.Unmarshal(w.Body.Bytes(), &state)
	if state.PeakEquity != 10000 {
		t.Errorf("Expected peak equity 10000, got %.2f", state.PeakEquity)
	}
}

func TestAuthProtectsAPIRoutes(t *testing.T) {
	hash, err := auth.HashPassword("S3cretPass!")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	authConfig := auth.Config{
		Enabled:              true,
		JWTSecret:            "test-secret",
		AccessTokenDuration:  time.Minute,
		RefreshTokenDuration: time.Hour,
		Username:             "admin",
		PasswordHash:         hash,
	}
	s := newTestServer(t, authConfig)

	w := doRequest(s, http.MethodGet, "/api/state", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", w.Code)
	}

	w = doRequest(s, http.MethodPost, "/api/auth/login", auth.LoginRequest{
		Username: "admin",
		Password: "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for bad credentials, got %d", w.Code)
	}

	w = doRequest(s, http.MethodPost, "/api/auth/login", auth.LoginRequest{
		Username: "admin",
		Password: "S3cretPass!",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for login, got %d", w.Code)
	}

	var login auth.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("Failed to parse login response: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with token, got %d", rec.Code)
	}
}
