package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hft-trading-bot/internal/auth"
	"hft-trading-bot/internal/hft"
	"hft-trading-bot/internal/market"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"clients":   s.hub.ClientCount(),
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	if s.jwtManager == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "authentication is disabled"})
		return
	}

	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid login request"})
		return
	}

	resp, err := auth.Login(s.authConfig, s.jwtManager, req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidCredentials.Code})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleActiveSignals returns unexpired signals by default; pass
// include_expired=true to see everything the engine has accepted.
func (s *Server) handleActiveSignals(c *gin.Context) {
	includeExpired := c.Query("include_expired") == "true"
	symbol := c.Query("symbol")

	signals := s.engine.ActiveSignals(includeExpired)
	if symbol != "" {
		filtered := signals[:0]
		for _, sig := range signals {
			if sig.Symbol == symbol {
				filtered = append(filtered, sig)
			}
		}
		signals = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"signals": signals,
		"count":   len(signals),
	})
}

func (s *Server) handleSignalHistory(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence is disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.repo.GetRecentSignals(c.Request.Context(), c.Query("symbol"), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load signal history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load signal history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signals": records,
		"count":   len(records),
	})
}

type processSignalRequest struct {
	hft.Candidate
	Regime market.Regime `json:"regime"`
}

func (s *Server) handleProcessSignal(c *gin.Context) {
	var req processSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signal candidate"})
		return
	}
	if req.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	if req.Regime == "" {
		req.Regime = market.RegimeRanging
	}

	signal := s.engine.ProcessSignal(req.Candidate, req.Regime)
	if signal == nil {
		c.JSON(http.StatusOK, gin.H{
			"accepted": false,
			"signal":   nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accepted": true,
		"signal":   signal,
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	symbol := c.Param("symbol")
	metrics := s.engine.Analyze(symbol)
	c.JSON(http.StatusOK, metrics)
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.GetState())
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.GetConfig())
}

type equityRequest struct {
	Equity float64 `json:"equity" binding:"required"`
}

func (s *Server) handleEquityUpdate(c *gin.Context) {
	var req equityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Equity <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "equity must be a positive number"})
		return
	}

	before := s.engine.GetState()
	s.engine.UpdateEquity(req.Equity)
	state := s.engine.GetState()

	s.eventBus.PublishEquityUpdate(req.Equity, state.PeakEquity, state.CurrentDrawdown)
	if state.CircuitBreakerActive && !before.CircuitBreakerActive {
		s.eventBus.PublishCircuitBreaker(true, state.CircuitBreakerReason, state.CurrentDrawdown)
	}
	if s.repo != nil {
		if err := s.repo.SaveEquityMark(c.Request.Context(), req.Equity, state.PeakEquity, state.CurrentDrawdown, state.CircuitBreakerActive); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to persist equity mark")
		}
	}

	c.JSON(http.StatusOK, state)
}

func (s *Server) handleEquityHistory(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence is disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	marks, err := s.repo.GetEquityHistory(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load equity history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load equity history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"marks": marks,
		"count": len(marks),
	})
}

type tradeRequest struct {
	PnL float64 `json:"pnl"`
}

func (s *Server) handleRecordTrade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trade payload"})
		return
	}

	s.engine.RecordTrade(req.PnL)
	state := s.engine.GetState()

	s.eventBus.PublishTradeRecorded("", req.PnL, state.DailyTrades, state.DailyPnL)
	if s.repo != nil {
		if err := s.repo.RecordDailyTrade(c.Request.Context(), req.PnL); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to persist daily trade")
		}
	}

	c.JSON(http.StatusOK, state)
}

func (s *Server) handlePositions(c *gin.Context) {
	state := s.engine.GetState()
	c.JSON(http.StatusOK, gin.H{
		"positions": state.OpenPositions,
		"count":     len(state.OpenPositions),
	})
}

type positionRequest struct {
	Symbol string  `json:"symbol" binding:"required"`
	Size   float64 `json:"size" binding:"required"`
}

func (s *Server) handleRegisterPosition(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Size <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol and positive size are required"})
		return
	}

	if !s.engine.CanOpenPosition() {
		c.JSON(http.StatusConflict, gin.H{"error": "position limits or circuit breaker prevent opening"})
		return
	}

	s.engine.RegisterPosition(req.Symbol, req.Size)
	c.JSON(http.StatusOK, s.engine.GetState())
}

func (s *Server) handleReleasePosition(c *gin.Context) {
	symbol := c.Param("symbol")
	s.engine.ReleasePosition(symbol)
	c.JSON(http.StatusOK, s.engine.GetState())
}

func (s *Server) handleResetDaily(c *gin.Context) {
	s.engine.ResetDaily()
	s.logger.Info().Msg("Daily counters reset via API")
	c.JSON(http.StatusOK, s.engine.GetState())
}

func (s *Server) handleReset(c *gin.Context) {
	s.engine.Reset()
	s.logger.Info().Msg("Engine reset via API")
	c.JSON(http.StatusOK, s.engine.GetState())
}
