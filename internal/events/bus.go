package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSignalGenerated      EventType = "SIGNAL_GENERATED"
	EventCircuitBreakerUpdate EventType = "CIRCUIT_BREAKER_UPDATE"
	EventEquityUpdate         EventType = "EQUITY_UPDATE"
	EventTradeRecorded        EventType = "TRADE_RECORDED"
	EventPositionUpdate       EventType = "POSITION_UPDATE"
	EventFeedConnected        EventType = "FEED_CONNECTED"
	EventFeedDisconnected     EventType = "FEED_DISCONNECTED"
	EventEngineReset          EventType = "ENGINE_RESET"
	EventError                EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Subscribers run in their own
// goroutine so a slow consumer never blocks the engine path.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignal publishes an accepted signal event
func (eb *EventBus) PublishSignal(id, symbol, direction string, score, confidence, positionSize float64, urgency string) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"signal_id":     id,
			"symbol":        symbol,
			"direction":     direction,
			"score":         score,
			"confidence":    confidence,
			"position_size": positionSize,
			"urgency":       urgency,
		},
	})
}

// PublishCircuitBreaker publishes a breaker state change
func (eb *EventBus) PublishCircuitBreaker(active bool, reason string, drawdown float64) {
	eb.Publish(Event{
		Type: EventCircuitBreakerUpdate,
		Data: map[string]interface{}{
			"active":   active,
			"reason":   reason,
			"drawdown": drawdown,
		},
	})
}

// PublishEquityUpdate publishes an equity mark
func (eb *EventBus) PublishEquityUpdate(equity, peak, drawdown float64) {
	eb.Publish(Event{
		Type: EventEquityUpdate,
		Data: map[string]interface{}{
			"equity":   equity,
			"peak":     peak,
			"drawdown": drawdown,
		},
	})
}

// PublishTradeRecorded publishes a realized trade result
func (eb *EventBus) PublishTradeRecorded(symbol string, pnl float64, dailyTrades int, dailyPnL float64) {
	eb.Publish(Event{
		Type: EventTradeRecorded,
		Data: map[string]interface{}{
			"symbol":       symbol,
			"pnl":          pnl,
			"daily_trades": dailyTrades,
			"daily_pnl":    dailyPnL,
		},
	})
}

// PublishFeedStatus publishes feed connectivity changes
func (eb *EventBus) PublishFeedStatus(connected bool, url string) {
	eventType := EventFeedConnected
	if !connected {
		eventType = EventFeedDisconnected
	}
	eb.Publish(Event{
		Type: eventType,
		Data: map[string]interface{}{"url": url},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{Type: EventError, Data: data})
}
