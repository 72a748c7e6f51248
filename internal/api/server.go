// Package api exposes the HFT engine over HTTP for the trading dashboard.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"hft-trading-bot/internal/auth"
	"hft-trading-bot/internal/database"
	"hft-trading-bot/internal/events"
	"hft-trading-bot/internal/hft"
)

// Config holds server configuration
type Config struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	ProductionMode bool     `json:"production_mode"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// DefaultConfig returns a development server configuration
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8090,
		ProductionMode: false,
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8090"},
	}
}

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     Config
	engine     *hft.Engine
	repo       *database.Repository // nil when persistence is disabled
	eventBus   *events.EventBus
	hub        *WSHub
	authConfig auth.Config
	jwtManager *auth.JWTManager // nil when auth is disabled
	logger     zerolog.Logger
}

// NewServer creates a new API server
func NewServer(
	config Config,
	engine *hft.Engine,
	repo *database.Repository,
	eventBus *events.EventBus,
	authConfig auth.Config,
	logger zerolog.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = config.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:     router,
		config:     config,
		engine:     engine,
		repo:       repo,
		eventBus:   eventBus,
		authConfig: authConfig,
		logger:     logger.With().Str("component", "api").Logger(),
	}

	if authConfig.Enabled {
		server.jwtManager = auth.NewJWTManager(
			authConfig.JWTSecret,
			authConfig.AccessTokenDuration,
			authConfig.RefreshTokenDuration,
		)
	}

	server.hub = NewWSHub(server.logger)
	go server.hub.Run()
	eventBus.SubscribeAll(server.hub.BroadcastEvent)

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/api/auth/login", s.handleLogin)

	api := s.router.Group("/api")
	if s.jwtManager != nil {
		api.Use(auth.Middleware(s.jwtManager))
	}

	api.GET("/signals/active", s.handleActiveSignals)
	api.GET("/signals/history", s.handleSignalHistory)
	api.POST("/signals/process", s.handleProcessSignal)

	api.GET("/metrics/:symbol", s.handleMetrics)
	api.GET("/state", s.handleState)
	api.GET("/config", s.handleConfig)

	api.POST("/equity", s.handleEquityUpdate)
	api.GET("/equity/history", s.handleEquityHistory)
	api.POST("/trades", s.handleRecordTrade)

	api.GET("/positions", s.handlePositions)
	api.POST("/positions", s.handleRegisterPosition)
	api.DELETE("/positions/:symbol", s.handleReleasePosition)

	api.POST("/reset/daily", s.handleResetDaily)
	api.POST("/reset", s.handleReset)

	api.GET("/ws", s.handleWebSocket)
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("API server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info().Msg("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying gin router, used by tests
func (s *Server) Router() *gin.Engine {
	return s.router
}
