package hft

import (
	"time"

	"hft-trading-bot/internal/market"
	"hft-trading-bot/internal/microstructure"
)

// Direction is the directional idea of a candidate signal
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// ExecutionStyle labels how the execution layer should work the order
type ExecutionStyle string

const (
	ExecutionAggressive ExecutionStyle = "AGGRESSIVE"
	ExecutionPassive    ExecutionStyle = "PASSIVE"
	ExecutionAdaptive   ExecutionStyle = "ADAPTIVE"
)

// Urgency labels how quickly a signal should be acted on
type Urgency string

const (
	UrgencyCritical Urgency = "CRITICAL"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyMedium   Urgency = "MEDIUM"
	UrgencyLow      Urgency = "LOW"
)

// Candidate is a directional idea submitted for confirmation
type Candidate struct {
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"`
	Entry     float64   `json:"entry"`
	Stop      float64   `json:"stop"`
	Target    float64   `json:"target"`
}

// Confirmation is the result of one independent weighted check
type Confirmation struct {
	Layer   int     `json:"layer"`
	Name    string  `json:"name"`
	Passed  bool    `json:"passed"`
	Weight  float64 `json:"weight"`
	Score   float64 `json:"score"` // 0-100
	Details string  `json:"details"`
}

// Signal is an accepted, sized and risk-bounded trade recommendation.
// Created once, never mutated; owned by the caller after return.
type Signal struct {
	ID                string                 `json:"id"`
	Symbol            string                 `json:"symbol"`
	Direction         Direction              `json:"direction"`
	Strength          float64                `json:"strength"`
	Confidence        float64                `json:"confidence"` // 0-1
	Confirmations     []Confirmation         `json:"confirmations"`
	ConfirmationScore float64                `json:"confirmation_score"` // 0-100
	Microstructure    microstructure.Metrics `json:"microstructure"`
	Entry             float64                `json:"entry"`
	Stop              float64                `json:"stop"`
	Target            float64                `json:"target"`
	PositionSize      float64                `json:"position_size"`
	ExecutionStyle    ExecutionStyle         `json:"execution_style"`
	Urgency           Urgency                `json:"urgency"`
	RiskRewardRatio   float64                `json:"risk_reward_ratio"`
	Regime            market.Regime          `json:"regime"`
	CreatedAt         time.Time              `json:"created_at"`
	ValidUntil        time.Time              `json:"valid_until"`
}

// Expired reports whether the signal's advisory validity window has passed
func (s Signal) Expired(now time.Time) bool {
	return now.After(s.ValidUntil)
}

// Position is the typed handle the engine keeps per open position. The
// engine only needs cardinality and sizing; position lifecycle belongs to
// the execution layer.
type Position struct {
	Symbol   string    `json:"symbol"`
	Size     float64   `json:"size"`
	OpenedAt time.Time `json:"opened_at"`
}

// State is the mutable run state owned by one Engine instance
type State struct {
	ActiveSignals        []Signal            `json:"active_signals"`
	OpenPositions        map[string]Position `json:"open_positions"`
	DailyTrades          int                 `json:"daily_trades"`
	DailyPnL             float64             `json:"daily_pnl"`
	PeakEquity           float64             `json:"peak_equity"`
	CurrentDrawdown      float64             `json:"current_drawdown"`
	CircuitBreakerActive bool                `json:"circuit_breaker_active"`
	CircuitBreakerReason string              `json:"circuit_breaker_reason"`
}
