package hft

import (
	"fmt"
	"math"
	"time"

	"hft-trading-bot/internal/market"
	"hft-trading-bot/internal/microstructure"
)

// Layer weights. Manipulation carries the highest weight: a detected spoof
// or wash pattern must be able to sink the aggregate on its own.
const (
	weightOrderFlow     = 1.5
	weightLiquidity     = 1.3
	weightSpread        = 1.2
	weightRegime        = 1.4
	weightMarketQuality = 1.6
	weightWhale         = 1.1
	weightManipulation  = 2.0
	weightVolatility    = 1.0
	weightSession       = 0.8
	weightRiskReward    = 1.5
)

// GenerateConfirmations evaluates the ten independent weighted checks for a
// candidate against the current microstructure metrics and regime. Checks
// are order-insensitive; each produces its own pass flag and tiered score.
func GenerateConfirmations(c Candidate, m microstructure.Metrics, regime market.Regime, cfg Config, now time.Time) []Confirmation {
	return []Confirmation{
		confirmOrderFlow(m),
		confirmLiquidity(m, cfg),
		confirmSpread(m, cfg),
		confirmRegime(c, regime),
		confirmMarketQuality(m),
		confirmWhaleActivity(c, m, cfg),
		confirmManipulation(m),
		confirmVolatility(m),
		confirmSessionTiming(cfg, now),
		confirmRiskReward(c, cfg),
	}
}

// AggregateScore is the weighted mean of the layer scores
func AggregateScore(confirmations []Confirmation) float64 {
	var weightedSum, totalWeight float64
	for _, c := range confirmations {
		weightedSum += c.Score * c.Weight
		totalWeight += c.Weight
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

// PassedCount counts layers that passed
func PassedCount(confirmations []Confirmation) int {
	n := 0
	for _, c := range confirmations {
		if c.Passed {
			n++
		}
	}
	return n
}

// Layer 1: order flow must show directional pressure with enough turnover
func confirmOrderFlow(m microstructure.Metrics) Confirmation {
	imbalance := math.Abs(m.OrderFlowImbalance)
	passed := imbalance > 0.15 && m.TradeIntensity > 5000

	score := 30.0
	if imbalance > 0.3 && m.TradeIntensity > 10000 {
		score = 90
	} else if passed {
		score = 70
	}

	return Confirmation{
		Layer:   1,
		Name:    "Order Flow",
		Passed:  passed,
		Weight:  weightOrderFlow,
		Score:   score,
		Details: fmt.Sprintf("imbalance=%.3f intensity=%.0f", m.OrderFlowImbalance, m.TradeIntensity),
	}
}

// Layer 2: total book depth must clear the liquidity floor
func confirmLiquidity(m microstructure.Metrics, cfg Config) Confirmation {
	total := m.BidDepth + m.AskDepth
	passed := total > cfg.MinLiquidity

	score := 25.0
	if total > 2*cfg.MinLiquidity {
		score = 95
	} else if passed {
		score = 75
	}

	return Confirmation{
		Layer:   2,
		Name:    "Liquidity",
		Passed:  passed,
		Weight:  weightLiquidity,
		Score:   score,
		Details: fmt.Sprintf("depth=%.0f min=%.0f", total, cfg.MinLiquidity),
	}
}

// Layer 3: quoted spread as a percent of mid must stay under the cap
func confirmSpread(m microstructure.Metrics, cfg Config) Confirmation {
	spreadPercent := SpreadPercent(m)
	passed := m.MidPrice > 0 && spreadPercent < cfg.MaxSpreadPercent

	score := 20.0
	switch {
	case !passed:
	case spreadPercent < 0.3*cfg.MaxSpreadPercent:
		score = 100
	case spreadPercent < 0.6*cfg.MaxSpreadPercent:
		score = 80
	default:
		score = 60
	}

	return Confirmation{
		Layer:   3,
		Name:    "Spread",
		Passed:  passed,
		Weight:  weightSpread,
		Score:   score,
		Details: fmt.Sprintf("spread=%.4f%% max=%.4f%%", spreadPercent, cfg.MaxSpreadPercent),
	}
}

// Layer 4: direction must align with a trending regime, or the market must
// be ranging
func confirmRegime(c Candidate, regime market.Regime) Confirmation {
	aligned := (c.Direction == DirectionLong && regime == market.RegimeTrendingUp) ||
		(c.Direction == DirectionShort && regime == market.RegimeTrendingDown)

	var passed bool
	var score float64
	switch {
	case aligned:
		passed, score = true, 95
	case regime == market.RegimeRanging:
		passed, score = true, 60
	case regime == market.RegimeHighVolatility:
		passed, score = false, 40
	default:
		passed, score = false, 20
	}

	return Confirmation{
		Layer:   4,
		Name:    "Market Regime",
		Passed:  passed,
		Weight:  weightRegime,
		Score:   score,
		Details: fmt.Sprintf("direction=%s regime=%s", c.Direction, regime),
	}
}

// Layer 5: reject books showing spoofing or wash trading; tolerate icebergs
// at a reduced score
func confirmMarketQuality(m microstructure.Metrics) Confirmation {
	var passed bool
	var score float64
	var details string
	switch {
	case m.SpoofingDetected:
		passed, score = false, 10
		details = fmt.Sprintf("spoofing detected (ratio=%.2f)", m.SpoofingRatio)
	case m.WashTradingDetected:
		passed, score = false, 15
		details = fmt.Sprintf("wash trading detected (ratio=%.2f)", m.WashTradingRatio)
	case m.IcebergDetected:
		passed, score = true, 50
		details = fmt.Sprintf("iceberg orders present (ratio=%.2f)", m.IcebergRatio)
	default:
		passed, score = true, 85
		details = "clean order book"
	}

	return Confirmation{
		Layer:   5,
		Name:    "Market Quality",
		Passed:  passed,
		Weight:  weightMarketQuality,
		Score:   score,
		Details: details,
	}
}

// Layer 6: large-trade activity and depth skew should back the direction.
// Auto-passes when whale detection is disabled.
func confirmWhaleActivity(c Candidate, m microstructure.Metrics, cfg Config) Confirmation {
	if !cfg.EnableWhaleDetection {
		return Confirmation{
			Layer:   6,
			Name:    "Whale Activity",
			Passed:  true,
			Weight:  weightWhale,
			Score:   70,
			Details: "whale detection disabled",
		}
	}

	aligned := (c.Direction == DirectionLong && m.DepthImbalance > 0) ||
		(c.Direction == DirectionShort && m.DepthImbalance < 0)

	var passed bool
	var score float64
	switch {
	case aligned && m.LargeTradeRatio > 0.3:
		passed, score = true, 90
	case aligned && m.LargeTradeRatio > 0.1:
		passed, score = true, 65
	default:
		passed, score = false, 40
	}

	return Confirmation{
		Layer:   6,
		Name:    "Whale Activity",
		Passed:  passed,
		Weight:  weightWhale,
		Score:   score,
		Details: fmt.Sprintf("large_trade_ratio=%.2f depth_imbalance=%.3f", m.LargeTradeRatio, m.DepthImbalance),
	}
}

// Layer 7: hard fail on spoofing or wash trading regardless of other layers
func confirmManipulation(m microstructure.Metrics) Confirmation {
	var passed bool
	var score float64
	var details string
	switch {
	case m.SpoofingDetected || m.WashTradingDetected:
		passed, score = false, 0
		details = fmt.Sprintf("manipulation detected (spoofing=%v wash=%v)", m.SpoofingDetected, m.WashTradingDetected)
	case m.IcebergDetected:
		passed, score = true, 70
		details = "iceberg orders only"
	default:
		passed, score = true, 100
		details = "no manipulation detected"
	}

	return Confirmation{
		Layer:   7,
		Name:    "Manipulation Check",
		Passed:  passed,
		Weight:  weightManipulation,
		Score:   score,
		Details: details,
	}
}

// Layer 8: micro volatility must sit in the tradeable band
func confirmVolatility(m microstructure.Metrics) Confirmation {
	v := m.MicroVolatility
	passed := v >= 0.001 && v < 0.02

	var score float64
	switch {
	case v < 0.001:
		score = 50
	case v < 0.005:
		score = 90
	case v < 0.02:
		score = 75
	default:
		score = 30
	}

	return Confirmation{
		Layer:   8,
		Name:    "Volatility",
		Passed:  passed,
		Weight:  weightVolatility,
		Score:   score,
		Details: fmt.Sprintf("micro_volatility=%.5f", v),
	}
}

// Layer 9: trade only weekdays inside a liquid session window (UTC hours).
// Auto-passes when the session filter is disabled.
func confirmSessionTiming(cfg Config, now time.Time) Confirmation {
	if !cfg.EnableSessionFilter {
		return Confirmation{
			Layer:   9,
			Name:    "Session Timing",
			Passed:  true,
			Weight:  weightSession,
			Score:   70,
			Details: "session filter disabled",
		}
	}

	utc := now.UTC()
	if wd := utc.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return Confirmation{
			Layer:   9,
			Name:    "Session Timing",
			Passed:  false,
			Weight:  weightSession,
			Score:   30,
			Details: "weekend",
		}
	}

	hour := utc.Hour()
	var passed bool
	var score float64
	var session string
	switch {
	case hour >= 13 && hour < 16:
		passed, score, session = true, 100, "London/NY overlap"
	case hour >= 8 && hour < 16:
		passed, score, session = true, 85, "London"
	case hour >= 13 && hour < 21:
		passed, score, session = true, 80, "New York"
	case hour < 8:
		passed, score, session = true, 60, "Asian"
	default:
		passed, score, session = false, 40, "off hours"
	}

	return Confirmation{
		Layer:   9,
		Name:    "Session Timing",
		Passed:  passed,
		Weight:  weightSession,
		Score:   score,
		Details: fmt.Sprintf("%s (%02d:00 UTC)", session, hour),
	}
}

// Layer 10: reward/risk must clear the configured floor. Missing price
// levels are a hard fail, never an error.
func confirmRiskReward(c Candidate, cfg Config) Confirmation {
	if c.Entry == 0 || c.Stop == 0 || c.Target == 0 {
		return Confirmation{
			Layer:   10,
			Name:    "Risk/Reward",
			Passed:  false,
			Weight:  weightRiskReward,
			Score:   0,
			Details: "missing price levels",
		}
	}

	ratio := RiskRewardRatio(c)
	passed := ratio >= cfg.MinRiskReward

	score := 30.0
	switch {
	case ratio >= 2*cfg.MinRiskReward:
		score = 100
	case ratio >= 1.5*cfg.MinRiskReward:
		score = 85
	case passed:
		score = 70
	}

	return Confirmation{
		Layer:   10,
		Name:    "Risk/Reward",
		Passed:  passed,
		Weight:  weightRiskReward,
		Score:   score,
		Details: fmt.Sprintf("ratio=%.2f min=%.2f", ratio, cfg.MinRiskReward),
	}
}

// RiskRewardRatio computes |target-entry| / |entry-stop|, zero when the
// stop distance is zero
func RiskRewardRatio(c Candidate) float64 {
	risk := math.Abs(c.Entry - c.Stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(c.Target-c.Entry) / risk
}

// SpreadPercent expresses the quoted spread as a percent of the mid price
func SpreadPercent(m microstructure.Metrics) float64 {
	if m.MidPrice <= 0 {
		return 0
	}
	return m.QuotedSpread / m.MidPrice * 100
}
