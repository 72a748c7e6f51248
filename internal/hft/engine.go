package hft

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"hft-trading-bot/internal/market"
	"hft-trading-bot/internal/microstructure"
)

// signalTTL is the advisory validity window stamped on accepted signals
const signalTTL = 30 * time.Second

// confidenceSizingCap limits how much of the max position size confidence
// can unlock
const confidenceSizingCap = 0.8

// SignalCallback receives each accepted signal synchronously
type SignalCallback func(Signal)

// Engine turns raw order book and trade telemetry plus a candidate
// directional idea into an accept/reject decision, a sized trade
// recommendation and a portfolio-level circuit breaker. One Engine instance
// owns its analyzer history and state exclusively; construct it explicitly
// and keep it in the caller's context, never as a package global.
type Engine struct {
	mu        sync.RWMutex
	config    Config
	state     State
	analyzer  *microstructure.Analyzer
	callbacks []SignalCallback
	logger    zerolog.Logger
}

// NewEngine creates an engine with the given configuration
func NewEngine(cfg Config, logger zerolog.Logger) *Engine {
	return &Engine{
		config:   cfg,
		analyzer: microstructure.NewAnalyzer(),
		state: State{
			OpenPositions: make(map[string]Position),
		},
		logger: logger.With().Str("component", "hft_engine").Logger(),
	}
}

// OnSignal registers a callback invoked synchronously with each accepted
// signal
func (e *Engine) OnSignal(cb SignalCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = append(e.callbacks, cb)
}

// UpdateOrderbook feeds a new order book snapshot into the analyzer
func (e *Engine) UpdateOrderbook(symbol string, snap market.OrderbookSnapshot) {
	e.analyzer.UpdateOrderbook(symbol, snap)
}

// UpdateTrades feeds new trades into the analyzer
func (e *Engine) UpdateTrades(symbol string, trades []market.Trade) {
	e.analyzer.UpdateTrades(symbol, trades)
}

// Analyze exposes the current microstructure metrics for a symbol
func (e *Engine) Analyze(symbol string) microstructure.Metrics {
	return e.analyzer.Analyze(symbol)
}

// ProcessSignal evaluates a candidate and returns an accepted signal, or
// nil on any rejection path: circuit breaker active, too few confirmations,
// score below threshold, or risk/reward below threshold.
func (e *Engine) ProcessSignal(candidate Candidate, regime market.Regime) *Signal {
	e.mu.RLock()
	breakerActive := e.state.CircuitBreakerActive
	cfg := e.config
	e.mu.RUnlock()

	if breakerActive {
		return nil
	}

	metrics := e.analyzer.Analyze(candidate.Symbol)
	now := time.Now()
	confirmations := GenerateConfirmations(candidate, metrics, regime, cfg, now)
	score := AggregateScore(confirmations)
	passed := PassedCount(confirmations)
	riskReward := RiskRewardRatio(candidate)

	if passed < cfg.RequiredConfirmations {
		e.logger.Debug().Str("symbol", candidate.Symbol).Int("passed", passed).
			Int("required", cfg.RequiredConfirmations).Msg("rejected: too few confirmations")
		return nil
	}
	if score < cfg.MinConfirmationScore {
		e.logger.Debug().Str("symbol", candidate.Symbol).Float64("score", score).
			Float64("min", cfg.MinConfirmationScore).Msg("rejected: score below threshold")
		return nil
	}
	if riskReward < cfg.MinRiskReward {
		e.logger.Debug().Str("symbol", candidate.Symbol).Float64("risk_reward", riskReward).
			Float64("min", cfg.MinRiskReward).Msg("rejected: risk/reward below threshold")
		return nil
	}

	confidence := score / 100
	signal := Signal{
		ID:                uuid.New().String(),
		Symbol:            candidate.Symbol,
		Direction:         candidate.Direction,
		Strength:          candidate.Strength,
		Confidence:        confidence,
		Confirmations:     confirmations,
		ConfirmationScore: score,
		Microstructure:    metrics,
		Entry:             candidate.Entry,
		Stop:              candidate.Stop,
		Target:            candidate.Target,
		PositionSize:      e.positionSize(confidence, candidate),
		ExecutionStyle:    executionStyle(confidence, metrics, cfg),
		Urgency:           urgency(score, metrics),
		RiskRewardRatio:   riskReward,
		Regime:            regime,
		CreatedAt:         now,
		ValidUntil:        now.Add(signalTTL),
	}

	e.mu.Lock()
	e.state.ActiveSignals = append(e.state.ActiveSignals, signal)
	callbacks := make([]SignalCallback, len(e.callbacks))
	copy(callbacks, e.callbacks)
	e.mu.Unlock()

	e.logger.Info().Str("symbol", signal.Symbol).Str("direction", string(signal.Direction)).
		Float64("score", score).Float64("confidence", confidence).
		Str("urgency", string(signal.Urgency)).Msg("signal accepted")

	for _, cb := range callbacks {
		cb(signal)
	}

	return &signal
}

// positionSize scales the max position size by capped confidence over the
// stop distance, never exceeding the configured cap
func (e *Engine) positionSize(confidence float64, c Candidate) float64 {
	stopDistance := math.Abs(c.Entry - c.Stop)
	if stopDistance == 0 {
		return 0
	}
	size := e.config.MaxPositionSize * math.Min(confidence, confidenceSizingCap) / stopDistance
	return math.Min(size, e.config.MaxPositionSize)
}

func executionStyle(confidence float64, m microstructure.Metrics, cfg Config) ExecutionStyle {
	if confidence > 0.9 && m.OrderFlowImbalance > 0.3 {
		return ExecutionAggressive
	}
	if confidence < 0.6 || SpreadPercent(m) > 0.5*cfg.MaxSpreadPercent {
		return ExecutionPassive
	}
	return ExecutionAdaptive
}

func urgency(score float64, m microstructure.Metrics) Urgency {
	switch {
	case score > 90 && m.TradeIntensity > 50000:
		return UrgencyCritical
	case score > 80 || math.Abs(m.OrderFlowImbalance) > 0.5:
		return UrgencyHigh
	case score > 70:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// UpdateEquity records an equity mark, tracks the monotonic peak and the
// current drawdown, and trips the circuit breaker when the drawdown reaches
// the configured limit. The trip is one-way: only ResetDaily or Reset clear
// it.
func (e *Engine) UpdateEquity(equity float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if equity > e.state.PeakEquity {
		e.state.PeakEquity = equity
	}

	if e.state.PeakEquity > 0 {
		e.state.CurrentDrawdown = (e.state.PeakEquity - equity) / e.state.PeakEquity
	} else {
		e.state.CurrentDrawdown = 0
	}

	if !e.state.CircuitBreakerActive && e.state.CurrentDrawdown >= e.config.MaxDrawdownPercent/100 {
		e.state.CircuitBreakerActive = true
		e.state.CircuitBreakerReason = fmt.Sprintf(
			"drawdown %.2f%% reached limit %.2f%% (peak equity %.2f, current %.2f)",
			e.state.CurrentDrawdown*100, e.config.MaxDrawdownPercent, e.state.PeakEquity, equity)
		e.logger.Warn().Float64("drawdown", e.state.CurrentDrawdown).
			Float64("limit", e.config.MaxDrawdownPercent/100).Msg("circuit breaker tripped")
	}
}

// RecordTrade increments the daily trade counter and accumulates realized
// PnL. It does not evaluate drawdown; callers must follow up with
// UpdateEquity.
func (e *Engine) RecordTrade(pnl float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.DailyTrades++
	e.state.DailyPnL += pnl
}

// CanOpenPosition reports whether the portfolio gates allow a new position
func (e *Engine) CanOpenPosition() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.state.CircuitBreakerActive &&
		len(e.state.OpenPositions) < e.config.MaxConcurrentPositions &&
		e.state.DailyTrades < e.config.MaxDailyTrades
}

// RegisterPosition records a position handle opened by the execution layer
func (e *Engine) RegisterPosition(symbol string, size float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.OpenPositions[symbol] = Position{
		Symbol:   symbol,
		Size:     size,
		OpenedAt: time.Now(),
	}
}

// ReleasePosition drops the position handle for a symbol
func (e *Engine) ReleasePosition(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.state.OpenPositions, symbol)
}

// ResetDaily clears the daily counters and the circuit breaker
func (e *Engine) ResetDaily() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.DailyTrades = 0
	e.state.DailyPnL = 0
	e.state.CircuitBreakerActive = false
	e.state.CircuitBreakerReason = ""
	e.logger.Info().Msg("daily state reset")
}

// Reset clears all run state and analyzer history
func (e *Engine) Reset() {
	e.mu.Lock()
	e.state = State{OpenPositions: make(map[string]Position)}
	e.mu.Unlock()
	e.analyzer.Reset()
	e.logger.Info().Msg("engine state reset")
}

// GetState returns a deep copy of the run state; callers never receive
// live references
func (e *Engine) GetState() State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := e.state
	out.ActiveSignals = make([]Signal, len(e.state.ActiveSignals))
	copy(out.ActiveSignals, e.state.ActiveSignals)
	out.OpenPositions = make(map[string]Position, len(e.state.OpenPositions))
	for k, v := range e.state.OpenPositions {
		out.OpenPositions[k] = v
	}
	return out
}

// GetConfig returns a copy of the engine configuration
func (e *Engine) GetConfig() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

// ActiveSignals returns the signals accepted so far. Expired entries are
// never pruned internally; filter with the expired flag when serving.
func (e *Engine) ActiveSignals(includeExpired bool) []Signal {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := time.Now()
	out := make([]Signal, 0, len(e.state.ActiveSignals))
	for _, s := range e.state.ActiveSignals {
		if !includeExpired && s.Expired(now) {
			continue
		}
		out = append(out, s)
	}
	return out
}
