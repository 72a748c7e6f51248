package hft

// Config holds the tunable thresholds of the confirmation engine. It is
// immutable during a run: replace it wholesale via NewEngine, never mutate
// fields on a live engine.
type Config struct {
	RequiredConfirmations  int     `json:"required_confirmations"`   // min layers that must pass
	MinConfirmationScore   float64 `json:"min_confirmation_score"`   // 0-100
	MinRiskReward          float64 `json:"min_risk_reward"`          // reward/risk floor
	MaxPositionSize        float64 `json:"max_position_size"`        // hard cap in base units
	MaxSpreadPercent       float64 `json:"max_spread_percent"`       // quoted spread ceiling, percent of mid
	MinLiquidity           float64 `json:"min_liquidity"`            // bid+ask depth floor in quote units
	MaxDrawdownPercent     float64 `json:"max_drawdown_percent"`     // circuit breaker trip level
	MaxConcurrentPositions int     `json:"max_concurrent_positions"` //
	MaxDailyTrades         int     `json:"max_daily_trades"`         //
	EnableWhaleDetection   bool    `json:"enable_whale_detection"`   // layer 6 toggle
	EnableSessionFilter    bool    `json:"enable_session_filter"`    // layer 9 toggle
}

// DefaultConfig returns conservative defaults
func DefaultConfig() Config {
	return Config{
		RequiredConfirmations:  6,
		MinConfirmationScore:   70,
		MinRiskReward:          1.5,
		MaxPositionSize:        1.0,
		MaxSpreadPercent:       0.1,
		MinLiquidity:           100000,
		MaxDrawdownPercent:     5.0,
		MaxConcurrentPositions: 3,
		MaxDailyTrades:         50,
		EnableWhaleDetection:   true,
		EnableSessionFilter:    true,
	}
}
