package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hft-trading-bot/internal/hft"
)

// Redis keys and channels for engine output
const (
	// LatestSignalKeyPrefix stores the most recent accepted signal per symbol.
	// Format: hft:signal:latest:{symbol}
	LatestSignalKeyPrefix = "hft:signal:latest"

	// BreakerStateKey stores the current circuit breaker state
	BreakerStateKey = "hft:breaker:state"

	// SignalChannel is the pub/sub channel for accepted signals
	SignalChannel = "hft:signals"

	// BreakerChannel is the pub/sub channel for breaker state changes
	BreakerChannel = "hft:breaker"
)

// SignalCache distributes accepted signals to dashboard consumers through
// Redis: the latest signal per symbol is cached for polling, and every
// acceptance is published on a pub/sub channel for push consumers.
type SignalCache struct {
	cache *CacheService
}

// NewSignalCache creates a signal cache on top of a CacheService
func NewSignalCache(cache *CacheService) *SignalCache {
	return &SignalCache{cache: cache}
}

// StoreSignal caches a signal under its symbol and publishes it. The cache
// entry expires with the signal so consumers never read stale entries.
func (sc *SignalCache) StoreSignal(ctx context.Context, signal hft.Signal) error {
	ttl := time.Until(signal.ValidUntil)
	if ttl <= 0 {
		return fmt.Errorf("signal %s already expired", signal.ID)
	}

	key := fmt.Sprintf("%s:%s", LatestSignalKeyPrefix, signal.Symbol)
	if err := sc.cache.Set(ctx, key, signal, ttl); err != nil {
		return err
	}
	return sc.cache.Publish(ctx, SignalChannel, signal)
}

// GetLatestSignal returns the cached signal for a symbol, or nil on miss
func (sc *SignalCache) GetLatestSignal(ctx context.Context, symbol string) (*hft.Signal, error) {
	key := fmt.Sprintf("%s:%s", LatestSignalKeyPrefix, symbol)

	var signal hft.Signal
	if err := sc.cache.GetJSON(ctx, key, &signal); err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return &signal, nil
}

// breakerState is the cached circuit breaker representation
type breakerState struct {
	Active    bool      `json:"active"`
	Reason    string    `json:"reason"`
	Drawdown  float64   `json:"drawdown"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoreBreakerState caches and publishes a circuit breaker state change
func (sc *SignalCache) StoreBreakerState(ctx context.Context, active bool, reason string, drawdown float64) error {
	state := breakerState{
		Active:    active,
		Reason:    reason,
		Drawdown:  drawdown,
		UpdatedAt: time.Now(),
	}
	if err := sc.cache.Set(ctx, BreakerStateKey, state, 0); err != nil {
		return err
	}
	return sc.cache.Publish(ctx, BreakerChannel, state)
}
