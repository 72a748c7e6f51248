package market

import "time"

// Side represents the taker side of a trade
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Regime represents the externally classified market state
type Regime string

const (
	RegimeTrendingUp     Regime = "TRENDING_UP"
	RegimeTrendingDown   Regime = "TRENDING_DOWN"
	RegimeRanging        Regime = "RANGING"
	RegimeHighVolatility Regime = "HIGH_VOLATILITY"
	RegimeLowVolatility  Regime = "LOW_VOLATILITY"
	RegimeTransition     Regime = "TRANSITION"
)

// OrderbookLevel represents a single price level in the order book
type OrderbookLevel struct {
	Price      float64 `json:"price"`
	Quantity   float64 `json:"quantity"`
	Cumulative float64 `json:"cumulative"`
	Delta      float64 `json:"delta"`
}

// OrderbookSnapshot represents one order book observation.
// Bids are ordered best-to-worst (descending price), asks ascending.
// Snapshots are immutable once received.
type OrderbookSnapshot struct {
	Symbol    string           `json:"symbol"`
	Timestamp time.Time        `json:"timestamp"`
	Bids      []OrderbookLevel `json:"bids"`
	Asks      []OrderbookLevel `json:"asks"`
	Spread    float64          `json:"spread"`
	MidPrice  float64          `json:"mid_price"`
	Imbalance float64          `json:"imbalance"`
	Depth     float64          `json:"depth"`
}

// Trade represents an immutable execution record
type Trade struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Side      Side      `json:"side"`
	Timestamp time.Time `json:"timestamp"`
	IsMaker   bool      `json:"is_maker"`
}

// Notional returns the trade value in quote-currency units
func (t Trade) Notional() float64 {
	return t.Price * t.Quantity
}
