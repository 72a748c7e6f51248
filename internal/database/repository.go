package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hft-trading-bot/internal/hft"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// SignalRecord is a persisted accepted signal row
type SignalRecord struct {
	ID                string    `json:"id"`
	Symbol            string    `json:"symbol"`
	Direction         string    `json:"direction"`
	Strength          float64   `json:"strength"`
	Confidence        float64   `json:"confidence"`
	ConfirmationScore float64   `json:"confirmation_score"`
	EntryPrice        float64   `json:"entry_price"`
	StopPrice         float64   `json:"stop_price"`
	TargetPrice       float64   `json:"target_price"`
	PositionSize      float64   `json:"position_size"`
	ExecutionStyle    string    `json:"execution_style"`
	Urgency           string    `json:"urgency"`
	RiskRewardRatio   float64   `json:"risk_reward_ratio"`
	Regime            string    `json:"regime"`
	CreatedAt         time.Time `json:"created_at"`
	ValidUntil        time.Time `json:"valid_until"`
}

// SaveSignal persists an accepted signal with its full confirmation detail
func (r *Repository) SaveSignal(ctx context.Context, signal hft.Signal) error {
	confirmations, err := json.Marshal(signal.Confirmations)
	if err != nil {
		return fmt.Errorf("failed to marshal confirmations: %w", err)
	}
	microstructure, err := json.Marshal(signal.Microstructure)
	if err != nil {
		return fmt.Errorf("failed to marshal microstructure: %w", err)
	}

	query := `
		INSERT INTO hft_signals (
			id, symbol, direction, strength, confidence, confirmation_score,
			confirmations, microstructure, entry_price, stop_price, target_price,
			position_size, execution_style, urgency, risk_reward_ratio, regime,
			created_at, valid_until
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = r.db.Pool.Exec(
		ctx, query,
		signal.ID, signal.Symbol, string(signal.Direction), signal.Strength,
		signal.Confidence, signal.ConfirmationScore, confirmations, microstructure,
		signal.Entry, signal.Stop, signal.Target, signal.PositionSize,
		string(signal.ExecutionStyle), string(signal.Urgency), signal.RiskRewardRatio,
		string(signal.Regime), signal.CreatedAt, signal.ValidUntil,
	)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	return nil
}

// GetRecentSignals returns the latest persisted signals, newest first
func (r *Repository) GetRecentSignals(ctx context.Context, symbol string, limit int) ([]SignalRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, symbol, direction, strength, confidence, confirmation_score,
		       entry_price, stop_price, target_price, position_size,
		       execution_style, urgency, risk_reward_ratio, regime,
		       created_at, valid_until
		FROM hft_signals
	`
	args := []interface{}{}
	if symbol != "" {
		query += ` WHERE symbol = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, symbol, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var records []SignalRecord
	for rows.Next() {
		var rec SignalRecord
		if err := rows.Scan(
			&rec.ID, &rec.Symbol, &rec.Direction, &rec.Strength, &rec.Confidence,
			&rec.ConfirmationScore, &rec.EntryPrice, &rec.StopPrice, &rec.TargetPrice,
			&rec.PositionSize, &rec.ExecutionStyle, &rec.Urgency, &rec.RiskRewardRatio,
			&rec.Regime, &rec.CreatedAt, &rec.ValidUntil,
		); err != nil {
			return nil, fmt.Errorf("failed to scan signal row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveEquityMark records an equity observation and the resulting drawdown
func (r *Repository) SaveEquityMark(ctx context.Context, equity, peak, drawdown float64, breakerActive bool) error {
	query := `
		INSERT INTO equity_marks (equity, peak_equity, drawdown, breaker_active)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.Pool.Exec(ctx, query, equity, peak, drawdown, breakerActive); err != nil {
		return fmt.Errorf("failed to insert equity mark: %w", err)
	}
	return nil
}

// GetEquityHistory returns recent equity marks, newest first
func (r *Repository) GetEquityHistory(ctx context.Context, limit int) ([]EquityMark, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT equity, peak_equity, drawdown, breaker_active, recorded_at
		FROM equity_marks
		ORDER BY recorded_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query equity marks: %w", err)
	}
	defer rows.Close()

	var marks []EquityMark
	for rows.Next() {
		var m EquityMark
		if err := rows.Scan(&m.Equity, &m.PeakEquity, &m.Drawdown, &m.BreakerActive, &m.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan equity mark: %w", err)
		}
		marks = append(marks, m)
	}
	return marks, rows.Err()
}

// EquityMark is a persisted equity observation
type EquityMark struct {
	Equity        float64   `json:"equity"`
	PeakEquity    float64   `json:"peak_equity"`
	Drawdown      float64   `json:"drawdown"`
	BreakerActive bool      `json:"breaker_active"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// RecordDailyTrade upserts the running trade count and PnL for today
func (r *Repository) RecordDailyTrade(ctx context.Context, pnl float64) error {
	query := `
		INSERT INTO daily_stats (day, trades, pnl)
		VALUES (CURRENT_DATE, 1, $1)
		ON CONFLICT (day) DO UPDATE
		SET trades = daily_stats.trades + 1,
		    pnl = daily_stats.pnl + $1,
		    updated_at = NOW()
	`
	if _, err := r.db.Pool.Exec(ctx, query, pnl); err != nil {
		return fmt.Errorf("failed to record daily trade: %w", err)
	}
	return nil
}

// RecordDailySignal increments today's accepted signal count
func (r *Repository) RecordDailySignal(ctx context.Context) error {
	query := `
		INSERT INTO daily_stats (day, signals_accepted)
		VALUES (CURRENT_DATE, 1)
		ON CONFLICT (day) DO UPDATE
		SET signals_accepted = daily_stats.signals_accepted + 1,
		    updated_at = NOW()
	`
	if _, err := r.db.Pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to record daily signal: %w", err)
	}
	return nil
}
