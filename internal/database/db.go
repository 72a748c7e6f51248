package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Config holds database configuration
type Config struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// DefaultConfig returns a local development database configuration
func DefaultConfig() Config {
	return Config{
		Enabled:  false,
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "hft_bot",
		SSLMode:  "disable",
	}
}

// NewDB creates a new database connection
func NewDB(cfg Config, logger zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger.Info().Str("database", cfg.Database).Str("host", cfg.Host).Msg("Connected to PostgreSQL")
	return &DB{
		Pool:   pool,
		logger: logger.With().Str("component", "database").Logger(),
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("Database connection closed")
	}
}

// RunMigrations creates the schema if it does not exist
func (db *DB) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS hft_signals (
			id UUID PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			direction VARCHAR(5) NOT NULL,
			strength DECIMAL(10, 6) NOT NULL,
			confidence DECIMAL(10, 6) NOT NULL,
			confirmation_score DECIMAL(10, 4) NOT NULL,
			confirmations JSONB NOT NULL,
			microstructure JSONB NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			stop_price DECIMAL(20, 8) NOT NULL,
			target_price DECIMAL(20, 8) NOT NULL,
			position_size DECIMAL(20, 8) NOT NULL,
			execution_style VARCHAR(12) NOT NULL,
			urgency VARCHAR(10) NOT NULL,
			risk_reward_ratio DECIMAL(10, 4) NOT NULL,
			regime VARCHAR(20) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			valid_until TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hft_signals_symbol ON hft_signals(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_hft_signals_created_at ON hft_signals(created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS equity_marks (
			id BIGSERIAL PRIMARY KEY,
			equity DECIMAL(20, 8) NOT NULL,
			peak_equity DECIMAL(20, 8) NOT NULL,
			drawdown DECIMAL(10, 6) NOT NULL,
			breaker_active BOOLEAN NOT NULL DEFAULT FALSE,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_equity_marks_recorded_at ON equity_marks(recorded_at DESC)`,

		`CREATE TABLE IF NOT EXISTS daily_stats (
			day DATE PRIMARY KEY,
			trades INT NOT NULL DEFAULT 0,
			pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			signals_accepted INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Int("count", len(migrations)).Msg("Database migrations completed")
	return nil
}
