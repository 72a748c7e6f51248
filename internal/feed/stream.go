// Package feed consumes exchange market data websocket streams and drives
// the HFT engine's order book and trade telemetry.
package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hft-trading-bot/internal/events"
	"hft-trading-bot/internal/hft"
	"hft-trading-bot/internal/market"
)

// Config holds market data feed configuration
type Config struct {
	Enabled bool     `json:"enabled"`
	BaseURL string   `json:"base_url"` // e.g. wss://stream.binance.com:9443
	Symbols []string `json:"symbols"`
	Depth   int      `json:"depth"` // levels per side to subscribe (5, 10 or 20)
}

// DefaultConfig returns a feed configuration for spot market data
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		BaseURL: "wss://stream.binance.com:9443",
		Symbols: []string{"BTCUSDT"},
		Depth:   20,
	}
}

// Stream consumes a combined depth+trade websocket stream and feeds the
// engine. It reconnects with a fixed backoff until stopped.
type Stream struct {
	mu        sync.RWMutex
	config    Config
	engine    *hft.Engine
	eventBus  *events.EventBus
	logger    zerolog.Logger
	conn      *websocket.Conn
	isRunning bool
	stopChan  chan struct{}
}

// NewStream creates a market data stream bound to an engine
func NewStream(cfg Config, engine *hft.Engine, eventBus *events.EventBus, logger zerolog.Logger) *Stream {
	return &Stream{
		config:   cfg,
		engine:   engine,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "feed").Logger(),
	}
}

// combinedMessage wraps every payload on a combined stream
type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// depthPayload is a partial book depth update (price/quantity string pairs)
type depthPayload struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// aggTradePayload is an aggregated trade event
type aggTradePayload struct {
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	AggTradeID   int64  `json:"a"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

// Start opens the websocket connection and begins feeding the engine
func (s *Stream) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("feed already running")
	}
	if len(s.config.Symbols) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no symbols configured")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go s.connectLoop()
	return nil
}

// Stop closes the connection and halts reconnection
func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	s.isRunning = false
	close(s.stopChan)
	if s.conn != nil {
		s.conn.Close()
	}
	s.logger.Info().Msg("feed stopped")
}

// IsRunning reports whether the stream is active
func (s *Stream) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Stream) streamURL() string {
	var names []string
	for _, symbol := range s.config.Symbols {
		lower := strings.ToLower(symbol)
		names = append(names, fmt.Sprintf("%s@depth%d@100ms", lower, s.config.Depth))
		names = append(names, lower+"@aggTrade")
	}
	return fmt.Sprintf("%s/stream?streams=%s", s.config.BaseURL, strings.Join(names, "/"))
}

func (s *Stream) connectLoop() {
	url := s.streamURL()

	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		s.logger.Info().Str("url", url).Msg("connecting to market data stream")
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			s.logger.Error().Err(err).Msg("feed connection failed, retrying in 5s")
			s.eventBus.PublishError("feed", "connection failed", err)
			select {
			case <-s.stopChan:
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		s.logger.Info().Msg("feed connected")
		s.eventBus.PublishFeedStatus(true, url)

		s.readLoop(conn)
		conn.Close()
		s.eventBus.PublishFeedStatus(false, url)

		select {
		case <-s.stopChan:
			return
		case <-time.After(time.Second):
		}
	}
}

func (s *Stream) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.logger.Warn().Err(err).Msg("feed read error")
			return
		}

		var msg combinedMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Debug().Err(err).Msg("skipping malformed feed message")
			continue
		}

		switch {
		case strings.Contains(msg.Stream, "@depth"):
			s.handleDepth(symbolFromStream(msg.Stream), msg.Data)
		case strings.Contains(msg.Stream, "@aggTrade"):
			s.handleAggTrade(msg.Data)
		}
	}
}

func symbolFromStream(stream string) string {
	if i := strings.Index(stream, "@"); i > 0 {
		return strings.ToUpper(stream[:i])
	}
	return ""
}

func (s *Stream) handleDepth(symbol string, data json.RawMessage) {
	var payload depthPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.logger.Debug().Err(err).Msg("skipping malformed depth payload")
		return
	}

	snap, err := buildSnapshot(symbol, payload)
	if err != nil {
		s.logger.Debug().Err(err).Str("symbol", symbol).Msg("skipping unusable depth payload")
		return
	}
	s.engine.UpdateOrderbook(symbol, snap)
}

func (s *Stream) handleAggTrade(data json.RawMessage) {
	var payload aggTradePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.logger.Debug().Err(err).Msg("skipping malformed trade payload")
		return
	}

	price, err1 := strconv.ParseFloat(payload.Price, 64)
	qty, err2 := strconv.ParseFloat(payload.Quantity, 64)
	if err1 != nil || err2 != nil || price <= 0 || qty <= 0 {
		return
	}

	// Buyer-maker means the aggressor sold
	side := market.SideBuy
	if payload.IsBuyerMaker {
		side = market.SideSell
	}

	s.engine.UpdateTrades(payload.Symbol, []market.Trade{{
		ID:        strconv.FormatInt(payload.AggTradeID, 10),
		Symbol:    payload.Symbol,
		Price:     price,
		Quantity:  qty,
		Side:      side,
		Timestamp: time.UnixMilli(payload.TradeTime),
		IsMaker:   payload.IsBuyerMaker,
	}})
}

// buildSnapshot converts a raw depth payload into an order book snapshot
// with derived spread, mid price, imbalance and cumulative levels
func buildSnapshot(symbol string, payload depthPayload) (market.OrderbookSnapshot, error) {
	bids, bidVol, err := parseLevels(payload.Bids)
	if err != nil {
		return market.OrderbookSnapshot{}, err
	}
	asks, askVol, err := parseLevels(payload.Asks)
	if err != nil {
		return market.OrderbookSnapshot{}, err
	}
	if len(bids) == 0 || len(asks) == 0 {
		return market.OrderbookSnapshot{}, fmt.Errorf("one-sided book for %s", symbol)
	}

	bestBid := bids[0].Price
	bestAsk := asks[0].Price

	snap := market.OrderbookSnapshot{
		Symbol:    symbol,
		Timestamp: time.Now(),
		Bids:      bids,
		Asks:      asks,
		Spread:    bestAsk - bestBid,
		MidPrice:  (bestBid + bestAsk) / 2,
	}
	if total := bidVol + askVol; total > 0 {
		snap.Imbalance = (bidVol - askVol) / total
	}
	for _, l := range bids {
		snap.Depth += l.Price * l.Quantity
	}
	for _, l := range asks {
		snap.Depth += l.Price * l.Quantity
	}
	return snap, nil
}

func parseLevels(raw [][2]string) ([]market.OrderbookLevel, float64, error) {
	levels := make([]market.OrderbookLevel, 0, len(raw))
	var cumulative, volume float64
	var prevQty float64

	for i, pair := range raw {
		price, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			return nil, 0, fmt.Errorf("bad price %q: %w", pair[0], err)
		}
		qty, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			return nil, 0, fmt.Errorf("bad quantity %q: %w", pair[1], err)
		}

		cumulative += qty
		volume += qty
		level := market.OrderbookLevel{
			Price:      price,
			Quantity:   qty,
			Cumulative: cumulative,
		}
		if i > 0 {
			level.Delta = qty - prevQty
		}
		prevQty = qty
		levels = append(levels, level)
	}
	return levels, volume, nil
}
