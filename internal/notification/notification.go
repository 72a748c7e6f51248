package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"hft-trading-bot/internal/hft"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifySignal  NotificationType = "signal"
	NotifyBreaker NotificationType = "circuit_breaker"
	NotifyError   NotificationType = "error"
	NotifyInfo    NotificationType = "info"
)

// Notification represents a notification message
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Symbol    string
	Timestamp time.Time
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager manages multiple notification providers
type Manager struct {
	notifiers []Notifier
	enabled   bool
}

// NewManager creates a new notification manager
func NewManager() *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   true,
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendSignal sends an accepted HFT signal notification
func (m *Manager) SendSignal(signal hft.Signal) error {
	emoji := "🟢"
	if signal.Direction == hft.DirectionShort {
		emoji = "🔴"
	}

	return m.Send(&Notification{
		Type:  NotifySignal,
		Title: fmt.Sprintf("%s HFT Signal: %s %s", emoji, signal.Direction, signal.Symbol),
		Message: fmt.Sprintf(
			"Entry: %.4f | SL: %.4f | TP: %.4f\nScore: %.1f | Confidence: %.0f%%\nSize: %.6f | R/R: %.2f\nStyle: %s | Urgency: %s\nValid until: %s",
			signal.Entry, signal.Stop, signal.Target,
			signal.ConfirmationScore, signal.Confidence*100,
			signal.PositionSize, signal.RiskRewardRatio,
			signal.ExecutionStyle, signal.Urgency,
			signal.ValidUntil.UTC().Format(time.RFC3339)),
		Symbol:    signal.Symbol,
		Timestamp: time.Now(),
	})
}

// SendCircuitBreaker sends a breaker trip or reset notification
func (m *Manager) SendCircuitBreaker(active bool, reason string) error {
	title := "✅ Circuit Breaker Reset"
	message := "Signal acceptance resumed"
	if active {
		title = "🛑 Circuit Breaker Tripped"
		message = reason
	}

	return m.Send(&Notification{
		Type:      NotifyBreaker,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// SendError sends an error notification
func (m *Manager) SendError(title, message string) error {
	return m.Send(&Notification{
		Type:      NotifyError,
		Title:     fmt.Sprintf("⚠️ %s", title),
		Message:   message,
		Timestamp: time.Now(),
	})
}

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(notification *Notification) error {
	if !t.enabled {
		return nil
	}

	message := fmt.Sprintf("*%s*\n\n%s", notification.Title, notification.Message)

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}
