package hft

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hft-trading-bot/internal/market"
)

func testEngine(cfg Config) *Engine {
	return NewEngine(cfg, zerolog.Nop())
}

// acceptingConfig relaxes the gates that depend on wall clock so the
// acceptance path is reproducible in tests
func acceptingConfig() Config {
	cfg := DefaultConfig()
	cfg.RequiredConfirmations = 5
	cfg.MinConfirmationScore = 70
	cfg.MinRiskReward = 2.0
	cfg.MaxPositionSize = 1.0
	cfg.MinLiquidity = 1000
	cfg.MaxSpreadPercent = 0.1
	cfg.EnableWhaleDetection = false
	cfg.EnableSessionFilter = false
	return cfg
}

// feedHealthyMarket loads one deep snapshot and a burst of recent one-sided
// trades so order flow, liquidity and spread layers pass
func feedHealthyMarket(e *Engine, symbol string) {
	snap := market.OrderbookSnapshot{
		Symbol:    symbol,
		Timestamp: time.Now(),
		MidPrice:  100,
		Spread:    0.02,
		Bids: []market.OrderbookLevel{
			{Price: 99.99, Quantity: 10},
			{Price: 99.98, Quantity: 8},
			{Price: 99.97, Quantity: 6},
			{Price: 99.96, Quantity: 4},
			{Price: 99.95, Quantity: 2},
		},
		Asks: []market.OrderbookLevel{
			{Price: 100.01, Quantity: 3},
			{Price: 100.02, Quantity: 3},
			{Price: 100.03, Quantity: 2},
			{Price: 100.04, Quantity: 1},
			{Price: 100.05, Quantity: 1},
		},
	}
	e.UpdateOrderbook(symbol, snap)

	now := time.Now()
	var trades []market.Trade
	for i := 0; i < 20; i++ {
		trades = append(trades, market.Trade{
			Symbol:    symbol,
			Price:     100,
			Quantity:  10, // notional 1000 each, 20k intensity
			Side:      market.SideBuy,
			Timestamp: now,
		})
	}
	e.UpdateTrades(symbol, trades)
}

// TestProcessSignalAccepts walks the full acceptance path
func TestProcessSignalAccepts(t *testing.T) {
	e := testEngine(acceptingConfig())
	feedHealthyMarket(e, "BTCUSDT")

	candidate := Candidate{
		Symbol:    "BTCUSDT",
		Direction: DirectionLong,
		Strength:  0.9,
		Entry:     100,
		Stop:      99,
		Target:    102.5, // rr 2.5
	}

	signal := e.ProcessSignal(candidate, market.RegimeTrendingUp)
	if signal == nil {
		t.Fatal("Expected an accepted signal for a healthy market")
	}

	if math.Abs(signal.RiskRewardRatio-2.5) > 1e-9 {
		t.Errorf("Expected risk/reward 2.5, got %.4f", signal.RiskRewardRatio)
	}
	if signal.Confidence <= 0 || signal.Confidence > 1 {
		t.Errorf("Confidence %.4f outside (0,1]", signal.Confidence)
	}
	if math.Abs(signal.Confidence-signal.ConfirmationScore/100) > 1e-9 {
		t.Errorf("Confidence %.4f must equal score/100 (%.4f)", signal.Confidence, signal.ConfirmationScore/100)
	}
	if signal.PositionSize <= 0 || signal.PositionSize > e.GetConfig().MaxPositionSize {
		t.Errorf("Position size %.4f outside (0,max]", signal.PositionSize)
	}
	if len(signal.Confirmations) != 10 {
		t.Errorf("Expected 10 confirmations embedded, got %d", len(signal.Confirmations))
	}
	if signal.ID == "" {
		t.Error("Signal must carry a generated ID")
	}
	if !signal.ValidUntil.After(signal.CreatedAt) {
		t.Error("ValidUntil must be stamped after CreatedAt")
	}

	state := e.GetState()
	if len(state.ActiveSignals) != 1 {
		t.Errorf("Expected 1 active signal in state, got %d", len(state.ActiveSignals))
	}
}

// TestProcessSignalRejectsLowRiskReward returns nil below the floor
func TestProcessSignalRejectsLowRiskReward(t *testing.T) {
	e := testEngine(acceptingConfig())
	feedHealthyMarket(e, "BTCUSDT")

	candidate := Candidate{
		Symbol:    "BTCUSDT",
		Direction: DirectionLong,
		Entry:     100,
		Stop:      99,
		Target:    101, // rr 1.0 < 2.0
	}

	if signal := e.ProcessSignal(candidate, market.RegimeTrendingUp); signal != nil {
		t.Error("Expected rejection for risk/reward below minimum")
	}
}

// TestProcessSignalRejectsTooFewConfirmations returns nil under the count gate
func TestProcessSignalRejectsTooFewConfirmations(t *testing.T) {
	cfg := acceptingConfig()
	cfg.RequiredConfirmations = 10
	e := testEngine(cfg)
	feedHealthyMarket(e, "BTCUSDT")

	candidate := Candidate{
		Symbol:    "BTCUSDT",
		Direction: DirectionLong,
		Entry:     100,
		Stop:      99,
		Target:    102.5,
	}

	// With a single snapshot micro volatility is zero, so layer 8 fails
	// and 10/10 can never be met
	if signal := e.ProcessSignal(candidate, market.RegimeTrendingUp); signal != nil {
		t.Error("Expected rejection when required confirmations cannot be met")
	}
}

// TestPositionSizeCappedAtMax holds for tight stops
func TestPositionSizeCappedAtMax(t *testing.T) {
	e := testEngine(acceptingConfig())
	feedHealthyMarket(e, "BTCUSDT")

	candidate := Candidate{
		Symbol:    "BTCUSDT",
		Direction: DirectionLong,
		Entry:     100,
		Stop:      99.99,  // stop distance 0.01
		Target:    100.04, // rr 4.0
	}

	signal := e.ProcessSignal(candidate, market.RegimeTrendingUp)
	if signal == nil {
		t.Fatal("Expected an accepted signal")
	}
	if signal.PositionSize != e.GetConfig().MaxPositionSize {
		t.Errorf("Tight stop must cap position size at max, got %.4f", signal.PositionSize)
	}
}

// TestWashTradingForcesRejection reproduces the manipulation veto end to end
func TestWashTradingForcesRejection(t *testing.T) {
	e := testEngine(acceptingConfig())
	feedHealthyMarket(e, "BTCUSDT")

	// Overwrite recent history with 20 alternating same-price trades
	now := time.Now()
	var wash []market.Trade
	for i := 0; i < 20; i++ {
		side := market.SideBuy
		if i%2 == 1 {
			side = market.SideSell
		}
		wash = append(wash, market.Trade{Symbol: "BTCUSDT", Price: 100, Quantity: 10, Side: side, Timestamp: now})
	}
	e.UpdateTrades("BTCUSDT", wash)

	candidate := Candidate{
		Symbol:    "BTCUSDT",
		Direction: DirectionLong,
		Entry:     100,
		Stop:      99,
		Target:    102.5,
	}

	if signal := e.ProcessSignal(candidate, market.RegimeTrendingUp); signal != nil {
		t.Error("Wash trading must force rejection regardless of other layers")
	}

	metrics := e.Analyze("BTCUSDT")
	if !metrics.WashTradingDetected {
		t.Error("Expected wash trading to be detected")
	}
}

// TestCircuitBreakerTripsOnDrawdown verifies the 5% trip and the hard gate
func TestCircuitBreakerTripsOnDrawdown(t *testing.T) {
	cfg := acceptingConfig()
	cfg.MaxDrawdownPercent = 5
	e := testEngine(cfg)
	feedHealthyMarket(e, "BTCUSDT")

	e.UpdateEquity(10000)
	e.UpdateEquity(9400) // 6% drawdown

	state := e.GetState()
	if !state.CircuitBreakerActive {
		t.Fatal("Circuit breaker should trip at 6% drawdown with a 5% limit")
	}
	if state.CircuitBreakerReason == "" {
		t.Error("Trip must record a human-readable reason")
	}

	candidate := Candidate{
		Symbol:    "BTCUSDT",
		Direction: DirectionLong,
		Entry:     100,
		Stop:      99,
		Target:    102.5,
	}
	if signal := e.ProcessSignal(candidate, market.RegimeTrendingUp); signal != nil {
		t.Error("ProcessSignal must return nil while the breaker is active")
	}

	// One-way trip: only ResetDaily clears it
	e.UpdateEquity(10000)
	if !e.GetState().CircuitBreakerActive {
		t.Error("Breaker must stay active until reset even after recovery")
	}

	e.ResetDaily()
	if e.GetState().CircuitBreakerActive {
		t.Error("ResetDaily must clear the breaker")
	}
	if signal := e.ProcessSignal(candidate, market.RegimeTrendingUp); signal == nil {
		t.Error("Expected signal acceptance after breaker reset")
	}
}

// TestCircuitBreakerBoundary trips exactly at the threshold
func TestCircuitBreakerBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDrawdownPercent = 5
	e := testEngine(cfg)

	e.UpdateEquity(10000)
	e.UpdateEquity(9501) // 4.99% - under
	if e.GetState().CircuitBreakerActive {
		t.Error("Breaker must not trip below the threshold")
	}

	e.UpdateEquity(9500) // exactly 5%
	if !e.GetState().CircuitBreakerActive {
		t.Error("Breaker must trip at exactly the threshold")
	}
}

// TestDrawdownTracking follows a decline and a new peak
func TestDrawdownTracking(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDrawdownPercent = 50
	e := testEngine(cfg)

	e.UpdateEquity(10000)
	if dd := e.GetState().CurrentDrawdown; dd != 0 {
		t.Errorf("Expected 0 drawdown at peak, got %.4f", dd)
	}

	e.UpdateEquity(9700)
	if dd := e.GetState().CurrentDrawdown; math.Abs(dd-0.03) > 1e-9 {
		t.Errorf("Expected 3%% drawdown, got %.4f", dd)
	}

	e.UpdateEquity(9500)
	if dd := e.GetState().CurrentDrawdown; math.Abs(dd-0.05) > 1e-9 {
		t.Errorf("Drawdown must grow within an unbroken decline, got %.4f", dd)
	}

	e.UpdateEquity(10500)
	state := e.GetState()
	if state.CurrentDrawdown != 0 {
		t.Errorf("Drawdown must reset at a new peak, got %.4f", state.CurrentDrawdown)
	}
	if state.PeakEquity != 10500 {
		t.Errorf("Peak equity must be monotonic, got %.2f", state.PeakEquity)
	}
}

// TestCanOpenPosition exercises all three gates
func TestCanOpenPosition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentPositions = 2
	cfg.MaxDailyTrades = 3
	cfg.MaxDrawdownPercent = 5
	e := testEngine(cfg)

	if !e.CanOpenPosition() {
		t.Error("Fresh engine should allow opening positions")
	}

	e.RegisterPosition("BTCUSDT", 0.5)
	e.RegisterPosition("ETHUSDT", 1.0)
	if e.CanOpenPosition() {
		t.Error("Max concurrent positions gate should block")
	}

	e.ReleasePosition("ETHUSDT")
	if !e.CanOpenPosition() {
		t.Error("Releasing a position should unblock")
	}

	e.RecordTrade(5)
	e.RecordTrade(-3)
	e.RecordTrade(2)
	if e.CanOpenPosition() {
		t.Error("Daily trade limit gate should block")
	}

	state := e.GetState()
	if state.DailyTrades != 3 {
		t.Errorf("Expected 3 daily trades, got %d", state.DailyTrades)
	}
	if math.Abs(state.DailyPnL-4) > 1e-9 {
		t.Errorf("Expected daily PnL 4, got %.2f", state.DailyPnL)
	}

	e.ResetDaily()
	if !e.CanOpenPosition() {
		t.Error("ResetDaily should clear the daily trade gate")
	}
}

// TestGetStateReturnsCopy ensures callers cannot mutate engine state
func TestGetStateReturnsCopy(t *testing.T) {
	e := testEngine(DefaultConfig())
	e.RegisterPosition("BTCUSDT", 1)

	state := e.GetState()
	delete(state.OpenPositions, "BTCUSDT")
	state.DailyTrades = 99

	fresh := e.GetState()
	if len(fresh.OpenPositions) != 1 {
		t.Error("Mutating the returned positions map must not affect the engine")
	}
	if fresh.DailyTrades != 0 {
		t.Error("Mutating the returned state must not affect the engine")
	}
}

// TestResetClearsEverything wipes state and history
func TestResetClearsEverything(t *testing.T) {
	e := testEngine(acceptingConfig())
	feedHealthyMarket(e, "BTCUSDT")
	e.UpdateEquity(10000)
	e.RecordTrade(10)
	e.RegisterPosition("BTCUSDT", 1)

	e.Reset()

	state := e.GetState()
	if state.PeakEquity != 0 || state.DailyTrades != 0 || len(state.OpenPositions) != 0 {
		t.Errorf("Reset must clear all state, got %+v", state)
	}
	if m := e.Analyze("BTCUSDT"); m.MidPrice != 0 {
		t.Error("Reset must clear analyzer history")
	}
}

// TestSignalCallbacksInvoked fires registered callbacks synchronously
func TestSignalCallbacksInvoked(t *testing.T) {
	e := testEngine(acceptingConfig())
	feedHealthyMarket(e, "BTCUSDT")

	var received []Signal
	e.OnSignal(func(s Signal) { received = append(received, s) })

	candidate := Candidate{
		Symbol:    "BTCUSDT",
		Direction: DirectionLong,
		Entry:     100,
		Stop:      99,
		Target:    102.5,
	}
	signal := e.ProcessSignal(candidate, market.RegimeTrendingUp)
	if signal == nil {
		t.Fatal("Expected an accepted signal")
	}
	if len(received) != 1 || received[0].ID != signal.ID {
		t.Error("Callback must receive the accepted signal synchronously")
	}
}

// TestActiveSignalsFiltering hides expired entries without pruning them
func TestActiveSignalsFiltering(t *testing.T) {
	e := testEngine(acceptingConfig())
	feedHealthyMarket(e, "BTCUSDT")

	candidate := Candidate{
		Symbol:    "BTCUSDT",
		Direction: DirectionLong,
		Entry:     100,
		Stop:      99,
		Target:    102.5,
	}
	if s := e.ProcessSignal(candidate, market.RegimeTrendingUp); s == nil {
		t.Fatal("Expected an accepted signal")
	}

	if got := len(e.ActiveSignals(false)); got != 1 {
		t.Errorf("Expected 1 unexpired signal, got %d", got)
	}
	if got := len(e.ActiveSignals(true)); got != 1 {
		t.Errorf("Expected 1 total signal, got %d", got)
	}
}
