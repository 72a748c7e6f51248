package microstructure

import (
	"math"
	"sync"
	"time"

	"hft-trading-bot/internal/market"
)

const (
	// MaxSnapshots caps per-symbol order book history (FIFO eviction)
	MaxSnapshots = 100
	// MaxTrades caps per-symbol trade history (FIFO eviction)
	MaxTrades = 1000

	// depthLevels is how many levels per side count toward depth
	depthLevels = 20
	// imbalanceLevels is how many levels per side count toward order flow imbalance
	imbalanceLevels = 5
	// intensityWindow is the lookback for trade intensity
	intensityWindow = time.Second
	// largeTradeNotional is the quote-currency notional above which a trade counts as large
	largeTradeNotional = 10000.0
	// largeTradeLookback is how many recent trades the large-trade ratio considers
	largeTradeLookback = 50
	// volatilityWindow is how many snapshots the micro volatility uses
	volatilityWindow = 10

	// depthEpsilon avoids division by zero in the depth imbalance
	depthEpsilon = 1e-4

	icebergRefillThreshold  = 0.7
	spoofingRateThreshold   = 0.8
	washAlternateThreshold  = 0.8
	washPriceTolerance      = 0.0001 // 0.01%
	washTradeLookback       = 20
	effectiveSpreadLookback = 10
)

// Metrics is a derived snapshot of order book and trade statistics for one
// symbol. It is computed fresh on each Analyze call and never mutated after
// construction. Detector booleans carry their underlying ratios so consumers
// can apply their own thresholds.
type Metrics struct {
	Symbol             string  `json:"symbol"`
	MidPrice           float64 `json:"mid_price"`
	EffectiveSpread    float64 `json:"effective_spread"`
	RealizedSpread     float64 `json:"realized_spread"`
	QuotedSpread       float64 `json:"quoted_spread"`
	OrderFlowImbalance float64 `json:"order_flow_imbalance"`
	TradeIntensity     float64 `json:"trade_intensity"`
	LargeTradeRatio    float64 `json:"large_trade_ratio"`
	BidDepth           float64 `json:"bid_depth"`
	AskDepth           float64 `json:"ask_depth"`
	DepthImbalance     float64 `json:"depth_imbalance"`
	MicroVolatility    float64 `json:"micro_volatility"`
	PriceImpact        float64 `json:"price_impact"`

	IcebergDetected     bool    `json:"iceberg_detected"`
	IcebergRatio        float64 `json:"iceberg_ratio"`
	SpoofingDetected    bool    `json:"spoofing_detected"`
	SpoofingRatio       float64 `json:"spoofing_ratio"`
	WashTradingDetected bool    `json:"wash_trading_detected"`
	WashTradingRatio    float64 `json:"wash_trading_ratio"`
}

// Analyzer maintains bounded per-symbol order book and trade history and
// computes Metrics on demand. Histories are exclusively owned by one engine
// instance; the internal lock makes feed and API goroutines safe against
// each other.
type Analyzer struct {
	mu        sync.RWMutex
	snapshots map[string][]market.OrderbookSnapshot
	trades    map[string][]market.Trade
}

// NewAnalyzer creates an empty analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		snapshots: make(map[string][]market.OrderbookSnapshot),
		trades:    make(map[string][]market.Trade),
	}
}

// UpdateOrderbook appends a snapshot to the symbol history, evicting the
// oldest entry beyond MaxSnapshots
func (a *Analyzer) UpdateOrderbook(symbol string, snap market.OrderbookSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	history := append(a.snapshots[symbol], snap)
	if len(history) > MaxSnapshots {
		history = history[len(history)-MaxSnapshots:]
	}
	a.snapshots[symbol] = history
}

// UpdateTrades appends trades to the symbol history, evicting the oldest
// entries beyond MaxTrades
func (a *Analyzer) UpdateTrades(symbol string, trades []market.Trade) {
	if len(trades) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	history := append(a.trades[symbol], trades...)
	if len(history) > MaxTrades {
		history = history[len(history)-MaxTrades:]
	}
	a.trades[symbol] = history
}

// SnapshotCount returns the number of buffered snapshots for a symbol
func (a *Analyzer) SnapshotCount(symbol string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.snapshots[symbol])
}

// TradeCount returns the number of buffered trades for a symbol
func (a *Analyzer) TradeCount(symbol string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.trades[symbol])
}

// Analyze computes a fresh Metrics value from the current history. It is a
// pure function of the buffered data: calling it twice without new updates
// yields identical results. Returns a zero-value Metrics if no order book
// has been received for the symbol yet.
func (a *Analyzer) Analyze(symbol string) Metrics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snapshots := a.snapshots[symbol]
	if len(snapshots) == 0 {
		return Metrics{Symbol: symbol}
	}

	trades := a.trades[symbol]
	latest := snapshots[len(snapshots)-1]
	mid := latest.MidPrice

	m := Metrics{
		Symbol:       symbol,
		MidPrice:     mid,
		QuotedSpread: latest.Spread,
	}

	if mid > 0 && len(trades) > 0 {
		m.EffectiveSpread = effectiveSpread(trades, mid)
		m.PriceImpact = math.Abs(trades[len(trades)-1].Price-mid) / mid
	}
	if mid > 0 && len(trades) >= 2 {
		last := trades[len(trades)-1].Price
		prev := trades[len(trades)-2].Price
		m.RealizedSpread = math.Abs(last-prev) / mid
	}

	m.OrderFlowImbalance = orderFlowImbalance(latest)
	m.TradeIntensity = tradeIntensity(trades)
	m.LargeTradeRatio = largeTradeRatio(trades)
	m.BidDepth = sideDepth(latest.Bids)
	m.AskDepth = sideDepth(latest.Asks)
	m.DepthImbalance = (m.BidDepth - m.AskDepth) / (m.BidDepth + m.AskDepth + depthEpsilon)
	m.MicroVolatility = microVolatility(snapshots)

	m.IcebergRatio = icebergRatio(snapshots)
	m.IcebergDetected = len(snapshots) >= 5 && m.IcebergRatio > icebergRefillThreshold
	m.SpoofingRatio = spoofingRatio(snapshots)
	m.SpoofingDetected = len(snapshots) >= 3 && m.SpoofingRatio > spoofingRateThreshold
	m.WashTradingRatio = washTradingRatio(trades)
	m.WashTradingDetected = len(trades) >= washTradeLookback && m.WashTradingRatio > washAlternateThreshold

	return m
}

// Reset drops all buffered history
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshots = make(map[string][]market.OrderbookSnapshot)
	a.trades = make(map[string][]market.Trade)
}

// effectiveSpread is twice the distance between the recent average trade
// price and the mid price, relative to mid
func effectiveSpread(trades []market.Trade, mid float64) float64 {
	recent := trades
	if len(recent) > effectiveSpreadLookback {
		recent = recent[len(recent)-effectiveSpreadLookback:]
	}

	var sum float64
	for _, t := range recent {
		sum += t.Price
	}
	avg := sum / float64(len(recent))

	return 2 * math.Abs(avg-mid) / mid
}

// orderFlowImbalance compares resting volume on the top levels of each side
func orderFlowImbalance(snap market.OrderbookSnapshot) float64 {
	var bidVol, askVol float64
	for i, l := range snap.Bids {
		if i >= imbalanceLevels {
			break
		}
		bidVol += l.Quantity
	}
	for i, l := range snap.Asks {
		if i >= imbalanceLevels {
			break
		}
		askVol += l.Quantity
	}

	total := bidVol + askVol
	if total == 0 {
		return 0
	}
	return (bidVol - askVol) / total
}

// tradeIntensity sums notional traded within the last second
func tradeIntensity(trades []market.Trade) float64 {
	cutoff := time.Now().Add(-intensityWindow)

	var intensity float64
	for i := len(trades) - 1; i >= 0; i-- {
		if trades[i].Timestamp.Before(cutoff) {
			break
		}
		intensity += trades[i].Notional()
	}
	return intensity
}

// largeTradeRatio is the fraction of recent trades above the large notional
func largeTradeRatio(trades []market.Trade) float64 {
	recent := trades
	if len(recent) > largeTradeLookback {
		recent = recent[len(recent)-largeTradeLookback:]
	}
	if len(recent) == 0 {
		return 0
	}

	large := 0
	for _, t := range recent {
		if t.Notional() > largeTradeNotional {
			large++
		}
	}
	return float64(large) / float64(len(recent))
}

// sideDepth sums notional resting on the top levels of one side
func sideDepth(levels []market.OrderbookLevel) float64 {
	var depth float64
	for i, l := range levels {
		if i >= depthLevels {
			break
		}
		depth += l.Price * l.Quantity
	}
	return depth
}

// microVolatility is the coefficient of variation of the mid price over the
// most recent snapshots; zero until a full window is available
func microVolatility(snapshots []market.OrderbookSnapshot) float64 {
	if len(snapshots) < volatilityWindow {
		return 0
	}

	window := snapshots[len(snapshots)-volatilityWindow:]
	var sum float64
	for _, s := range window {
		sum += s.MidPrice
	}
	mean := sum / float64(len(window))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, s := range window {
		d := s.MidPrice - mean
		variance += d * d
	}
	variance /= float64(len(window))

	return math.Sqrt(variance) / mean
}

// icebergRatio counts level-refill events across consecutive snapshot pairs:
// a bid level whose quantity dropped below 20% of its prior value and later
// recovered above 50% of that prior value. The rate is normalized over the
// full history times the depth levels watched.
func icebergRatio(snapshots []market.OrderbookSnapshot) float64 {
	if len(snapshots) < 5 {
		return 0
	}

	// priorQty[level] holds the pre-drop quantity while a drop is pending
	priorQty := make(map[int]float64)
	refills := 0

	for i := 1; i < len(snapshots); i++ {
		prev, curr := snapshots[i-1], snapshots[i]
		levels := len(curr.Bids)
		if levels > depthLevels {
			levels = depthLevels
		}
		for l := 0; l < levels && l < len(prev.Bids); l++ {
			prevQty := prev.Bids[l].Quantity
			currQty := curr.Bids[l].Quantity

			if pending, ok := priorQty[l]; ok && currQty > 0.5*pending {
				refills++
				delete(priorQty, l)
				continue
			}
			if prevQty > 0 && currQty < 0.2*prevQty {
				priorQty[l] = prevQty
			}
		}
	}

	return float64(refills) / float64(len(snapshots)*depthLevels)
}

// spoofingRatio counts consecutive-pair events where the best bid quantity
// shrinks to less than a third of its previous value while remaining nonzero
func spoofingRatio(snapshots []market.OrderbookSnapshot) float64 {
	if len(snapshots) < 3 {
		return 0
	}

	pairs := 0
	events := 0
	for i := 1; i < len(snapshots); i++ {
		prev, curr := snapshots[i-1], snapshots[i]
		if len(prev.Bids) == 0 || len(curr.Bids) == 0 {
			continue
		}
		pairs++
		prevQty := prev.Bids[0].Quantity
		currQty := curr.Bids[0].Quantity
		if currQty > 0 && prevQty > 0 && currQty < prevQty/3 {
			events++
		}
	}

	if pairs == 0 {
		return 0
	}
	return float64(events) / float64(pairs)
}

// washTradingRatio counts adjacent trades that alternate side with nearly
// identical prices over the recent trade window
func washTradingRatio(trades []market.Trade) float64 {
	if len(trades) < washTradeLookback {
		return 0
	}

	recent := trades[len(trades)-washTradeLookback:]
	events := 0
	for i := 1; i < len(recent); i++ {
		prev, curr := recent[i-1], recent[i]
		if prev.Side == curr.Side || prev.Price <= 0 {
			continue
		}
		if math.Abs(curr.Price-prev.Price)/prev.Price < washPriceTolerance {
			events++
		}
	}

	return float64(events) / float64(len(recent)-1)
}
