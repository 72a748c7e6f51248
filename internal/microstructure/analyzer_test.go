package microstructure

import (
	"fmt"
	"math"
	"testing"
	"time"

	"hft-trading-bot/internal/market"
)

func makeSnapshot(symbol string, mid float64, bidQty, askQty []float64) market.OrderbookSnapshot {
	snap := market.OrderbookSnapshot{
		Symbol:    symbol,
		Timestamp: time.Now(),
		MidPrice:  mid,
		Spread:    0.02,
	}
	for i, q := range bidQty {
		snap.Bids = append(snap.Bids, market.OrderbookLevel{Price: mid - 0.01 - float64(i)*0.01, Quantity: q})
	}
	for i, q := range askQty {
		snap.Asks = append(snap.Asks, market.OrderbookLevel{Price: mid + 0.01 + float64(i)*0.01, Quantity: q})
	}
	return snap
}

// TestAnalyzeEmptyHistory verifies the all-zero metrics guard
func TestAnalyzeEmptyHistory(t *testing.T) {
	a := NewAnalyzer()
	m := a.Analyze("BTCUSDT")

	if m.Symbol != "BTCUSDT" {
		t.Errorf("Expected symbol to carry through, got %q", m.Symbol)
	}
	if m.MidPrice != 0 || m.OrderFlowImbalance != 0 || m.BidDepth != 0 {
		t.Error("Metrics should be zero-valued with no order book history")
	}
	if m.IcebergDetected || m.SpoofingDetected || m.WashTradingDetected {
		t.Error("No detector should fire with no history")
	}
}

// TestOrderFlowImbalance checks the top-5 volume computation against a
// hand-computed value
func TestOrderFlowImbalance(t *testing.T) {
	a := NewAnalyzer()

	// 6 bid levels so the 6th must be ignored
	snap := makeSnapshot("BTCUSDT", 100,
		[]float64{5, 4, 3, 2, 1, 100},
		[]float64{2, 2, 2, 2, 2},
	)
	a.UpdateOrderbook("BTCUSDT", snap)

	m := a.Analyze("BTCUSDT")

	// bidVol5=15, askVol5=10 -> (15-10)/25 = 0.2
	want := 0.2
	if math.Abs(m.OrderFlowImbalance-want) > 1e-9 {
		t.Errorf("Expected imbalance %.4f, got %.4f", want, m.OrderFlowImbalance)
	}
	if m.OrderFlowImbalance < -1 || m.OrderFlowImbalance > 1 {
		t.Error("Imbalance must stay within [-1,1]")
	}
}

// TestOrderFlowImbalanceEmptyBook verifies the zero-volume guard
func TestOrderFlowImbalanceEmptyBook(t *testing.T) {
	a := NewAnalyzer()
	a.UpdateOrderbook("BTCUSDT", market.OrderbookSnapshot{Symbol: "BTCUSDT", MidPrice: 100})

	if m := a.Analyze("BTCUSDT"); m.OrderFlowImbalance != 0 {
		t.Errorf("Expected 0 imbalance for empty book, got %.4f", m.OrderFlowImbalance)
	}
}

// TestDepthAndImbalance checks notional depth over the top levels
func TestDepthAndImbalance(t *testing.T) {
	a := NewAnalyzer()
	snap := market.OrderbookSnapshot{
		Symbol:   "ETHUSDT",
		MidPrice: 2000,
		Bids: []market.OrderbookLevel{
			{Price: 1999, Quantity: 2},
			{Price: 1998, Quantity: 1},
		},
		Asks: []market.OrderbookLevel{
			{Price: 2001, Quantity: 1},
		},
	}
	a.UpdateOrderbook("ETHUSDT", snap)

	m := a.Analyze("ETHUSDT")

	wantBid := 1999.0*2 + 1998.0
	wantAsk := 2001.0
	if math.Abs(m.BidDepth-wantBid) > 1e-9 {
		t.Errorf("Expected bid depth %.2f, got %.2f", wantBid, m.BidDepth)
	}
	if math.Abs(m.AskDepth-wantAsk) > 1e-9 {
		t.Errorf("Expected ask depth %.2f, got %.2f", wantAsk, m.AskDepth)
	}

	wantImb := (wantBid - wantAsk) / (wantBid + wantAsk + 1e-4)
	if math.Abs(m.DepthImbalance-wantImb) > 1e-9 {
		t.Errorf("Expected depth imbalance %.6f, got %.6f", wantImb, m.DepthImbalance)
	}
}

// TestSnapshotEviction verifies the 100-entry FIFO cap
func TestSnapshotEviction(t *testing.T) {
	a := NewAnalyzer()
	for i := 0; i < MaxSnapshots+20; i++ {
		a.UpdateOrderbook("BTCUSDT", makeSnapshot("BTCUSDT", 100+float64(i), []float64{1}, []float64{1}))
	}

	if n := a.SnapshotCount("BTCUSDT"); n != MaxSnapshots {
		t.Errorf("Expected %d snapshots after eviction, got %d", MaxSnapshots, n)
	}

	// Newest snapshot must survive eviction
	m := a.Analyze("BTCUSDT")
	if m.MidPrice != 100+float64(MaxSnapshots+19) {
		t.Errorf("Expected latest mid price to survive, got %.2f", m.MidPrice)
	}
}

// TestTradeEviction verifies the 1000-entry FIFO cap
func TestTradeEviction(t *testing.T) {
	a := NewAnalyzer()
	trades := make([]market.Trade, MaxTrades+50)
	for i := range trades {
		trades[i] = market.Trade{
			ID:        fmt.Sprintf("t%d", i),
			Symbol:    "BTCUSDT",
			Price:     100,
			Quantity:  1,
			Side:      market.SideBuy,
			Timestamp: time.Now().Add(-time.Minute),
		}
	}
	a.UpdateTrades("BTCUSDT", trades)

	if n := a.TradeCount("BTCUSDT"); n != MaxTrades {
		t.Errorf("Expected %d trades after eviction, got %d", MaxTrades, n)
	}
}

// TestMicroVolatilityWindow requires a full 10-snapshot window
func TestMicroVolatilityWindow(t *testing.T) {
	a := NewAnalyzer()
	for i := 0; i < 9; i++ {
		a.UpdateOrderbook("BTCUSDT", makeSnapshot("BTCUSDT", 100+float64(i), []float64{1}, []float64{1}))
	}
	if m := a.Analyze("BTCUSDT"); m.MicroVolatility != 0 {
		t.Errorf("Expected 0 volatility under 10 snapshots, got %.6f", m.MicroVolatility)
	}

	a.UpdateOrderbook("BTCUSDT", makeSnapshot("BTCUSDT", 109, []float64{1}, []float64{1}))
	if m := a.Analyze("BTCUSDT"); m.MicroVolatility <= 0 {
		t.Errorf("Expected positive volatility with varying mids, got %.6f", m.MicroVolatility)
	}
}

// TestTradeIntensity only counts trades inside the one second window
func TestTradeIntensity(t *testing.T) {
	a := NewAnalyzer()
	a.UpdateOrderbook("BTCUSDT", makeSnapshot("BTCUSDT", 100, []float64{1}, []float64{1}))

	now := time.Now()
	a.UpdateTrades("BTCUSDT", []market.Trade{
		{Symbol: "BTCUSDT", Price: 100, Quantity: 10, Side: market.SideBuy, Timestamp: now.Add(-5 * time.Second)},
		{Symbol: "BTCUSDT", Price: 100, Quantity: 2, Side: market.SideBuy, Timestamp: now},
		{Symbol: "BTCUSDT", Price: 100, Quantity: 3, Side: market.SideSell, Timestamp: now},
	})

	m := a.Analyze("BTCUSDT")
	want := 100.0*2 + 100.0*3
	if math.Abs(m.TradeIntensity-want) > 1e-9 {
		t.Errorf("Expected intensity %.0f from recent trades only, got %.0f", want, m.TradeIntensity)
	}
}

// TestLargeTradeRatio counts notional above 10k over the last 50 trades
func TestLargeTradeRatio(t *testing.T) {
	a := NewAnalyzer()
	a.UpdateOrderbook("BTCUSDT", makeSnapshot("BTCUSDT", 100, []float64{1}, []float64{1}))

	old := time.Now().Add(-time.Minute)
	var trades []market.Trade
	for i := 0; i < 10; i++ {
		qty := 1.0 // notional 100
		if i < 4 {
			qty = 200 // notional 20000
		}
		trades = append(trades, market.Trade{Symbol: "BTCUSDT", Price: 100, Quantity: qty, Side: market.SideBuy, Timestamp: old})
	}
	a.UpdateTrades("BTCUSDT", trades)

	m := a.Analyze("BTCUSDT")
	if math.Abs(m.LargeTradeRatio-0.4) > 1e-9 {
		t.Errorf("Expected large trade ratio 0.4, got %.2f", m.LargeTradeRatio)
	}
}

// TestWashTradingDetection feeds 20 alternating same-price trades
func TestWashTradingDetection(t *testing.T) {
	a := NewAnalyzer()
	a.UpdateOrderbook("BTCUSDT", makeSnapshot("BTCUSDT", 100, []float64{1}, []float64{1}))

	old := time.Now().Add(-time.Minute)
	var trades []market.Trade
	for i := 0; i < 20; i++ {
		side := market.SideBuy
		if i%2 == 1 {
			side = market.SideSell
		}
		trades = append(trades, market.Trade{Symbol: "BTCUSDT", Price: 100, Quantity: 1, Side: side, Timestamp: old})
	}
	a.UpdateTrades("BTCUSDT", trades)

	m := a.Analyze("BTCUSDT")
	if !m.WashTradingDetected {
		t.Error("Should detect wash trading with perfect alternation at identical price")
	}
	if m.WashTradingRatio != 1.0 {
		t.Errorf("Expected alternation ratio 1.0, got %.2f", m.WashTradingRatio)
	}
}

// TestWashTradingRequiresTwentyTrades verifies the lookback guard
func TestWashTradingRequiresTwentyTrades(t *testing.T) {
	a := NewAnalyzer()
	a.UpdateOrderbook("BTCUSDT", makeSnapshot("BTCUSDT", 100, []float64{1}, []float64{1}))

	old := time.Now().Add(-time.Minute)
	var trades []market.Trade
	for i := 0; i < 19; i++ {
		side := market.SideBuy
		if i%2 == 1 {
			side = market.SideSell
		}
		trades = append(trades, market.Trade{Symbol: "BTCUSDT", Price: 100, Quantity: 1, Side: side, Timestamp: old})
	}
	a.UpdateTrades("BTCUSDT", trades)

	if m := a.Analyze("BTCUSDT"); m.WashTradingDetected {
		t.Error("Wash trading detector needs at least 20 trades")
	}
}

// TestSpoofingDetection shrinks the best bid below a third on every update
func TestSpoofingDetection(t *testing.T) {
	a := NewAnalyzer()
	qty := 1000.0
	for i := 0; i < 5; i++ {
		a.UpdateOrderbook("BTCUSDT", makeSnapshot("BTCUSDT", 100, []float64{qty}, []float64{10}))
		qty /= 4
	}

	m := a.Analyze("BTCUSDT")
	if !m.SpoofingDetected {
		t.Errorf("Should detect spoofing from repeated best-bid collapse, ratio=%.2f", m.SpoofingRatio)
	}
}

// TestSpoofingRequiresThreeSnapshots verifies the history guard
func TestSpoofingRequiresThreeSnapshots(t *testing.T) {
	a := NewAnalyzer()
	a.UpdateOrderbook("BTCUSDT", makeSnapshot("BTCUSDT", 100, []float64{1000}, []float64{10}))
	a.UpdateOrderbook("BTCUSDT", makeSnapshot("BTCUSDT", 100, []float64{100}, []float64{10}))

	if m := a.Analyze("BTCUSDT"); m.SpoofingDetected {
		t.Error("Spoofing detector needs at least 3 snapshots")
	}
}

// TestAnalyzeIdempotent verifies Analyze is a pure function of the history
func TestAnalyzeIdempotent(t *testing.T) {
	a := NewAnalyzer()
	for i := 0; i < 12; i++ {
		a.UpdateOrderbook("BTCUSDT", makeSnapshot("BTCUSDT", 100+float64(i)*0.1, []float64{5, 4}, []float64{3, 2}))
	}
	old := time.Now().Add(-time.Minute)
	a.UpdateTrades("BTCUSDT", []market.Trade{
		{Symbol: "BTCUSDT", Price: 101, Quantity: 2, Side: market.SideBuy, Timestamp: old},
		{Symbol: "BTCUSDT", Price: 101.1, Quantity: 1, Side: market.SideSell, Timestamp: old},
	})

	first := a.Analyze("BTCUSDT")
	second := a.Analyze("BTCUSDT")
	if first != second {
		t.Errorf("Analyze must be idempotent without new data:\n first=%+v\nsecond=%+v", first, second)
	}
}

// TestRealizedSpreadAndPriceImpact checks the last-trade computations
func TestRealizedSpreadAndPriceImpact(t *testing.T) {
	a := NewAnalyzer()
	a.UpdateOrderbook("BTCUSDT", makeSnapshot("BTCUSDT", 100, []float64{1}, []float64{1}))

	old := time.Now().Add(-time.Minute)
	a.UpdateTrades("BTCUSDT", []market.Trade{
		{Symbol: "BTCUSDT", Price: 100.2, Quantity: 1, Side: market.SideBuy, Timestamp: old},
		{Symbol: "BTCUSDT", Price: 100.5, Quantity: 1, Side: market.SideBuy, Timestamp: old},
	})

	m := a.Analyze("BTCUSDT")
	if math.Abs(m.RealizedSpread-0.3/100) > 1e-9 {
		t.Errorf("Expected realized spread 0.003, got %.6f", m.RealizedSpread)
	}
	if math.Abs(m.PriceImpact-0.5/100) > 1e-9 {
		t.Errorf("Expected price impact 0.005, got %.6f", m.PriceImpact)
	}
}
