// Package control expone una API HTTP mínima para operar el engine en marcha:
// healthcheck, estado, sources, últimas señales y reset del kill switch.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/polycopy/internal/application/engine"
	"github.com/alejandrodnm/polycopy/internal/domain"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// Engine es lo que la API necesita del engine.
type Engine interface {
	Status() engine.Status
	Sources() []domain.TrackedSource
	ResetKillSwitch()
}

// RecentReader lee las últimas transiciones del ledger. Opcional.
type RecentReader interface {
	Recent(ctx context.Context, limit int) ([]domain.SignalRecord, error)
}

// Server sirve la API de control.
type Server struct {
	engine Engine
	recent RecentReader
	srv    *http.Server
}

// New crea el servidor. recent puede ser nil.
func New(addr string, eng Engine, recent RecentReader) *Server {
	s := &Server{engine: eng, recent: recent}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router construye el handler gin.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/sources", s.handleSources)
	api.GET("/signals", s.handleSignals)
	api.POST("/kill-switch/reset", s.handleResetKillSwitch)

	return r
}

// ListenAndServe bloquea hasta que ctx se cancele.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("control: listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("control.ListenAndServe: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("control.ListenAndServe: shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

type sourceView struct {
	Address     string     `json:"address"`
	Name        string     `json:"name,omitempty"`
	AccuracyPct float64    `json:"accuracy_pct"`
	TotalTrades int        `json:"total_trades"`
	NetProfit   float64    `json:"net_profit"`
	Disabled    bool       `json:"disabled"`
	LastPollAt  *time.Time `json:"last_poll_at,omitempty"`
}

func (s *Server) handleSources(c *gin.Context) {
	sources := s.engine.Sources()
	out := make([]sourceView, 0, len(sources))
	for _, src := range sources {
		v := sourceView{
			Address:     src.Address,
			Name:        src.Name,
			AccuracyPct: src.Reputation.AccuracyPct,
			TotalTrades: src.Reputation.TotalTrades,
			NetProfit:   src.Reputation.NetProfit,
			Disabled:    src.Disabled,
		}
		if !src.LastPollAt.IsZero() {
			at := src.LastPollAt
			v.LastPollAt = &at
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"sources": out})
}

type recordView struct {
	SignalID    string    `json:"signal_id"`
	Stage       string    `json:"stage"`
	Disposition string    `json:"disposition"`
	Source      string    `json:"source"`
	MarketID    string    `json:"market_id"`
	Side        string    `json:"side"`
	Confidence  int       `json:"confidence"`
	Capital     float64   `json:"capital"`
	Shares      float64   `json:"shares"`
	Reason      string    `json:"reason,omitempty"`
	ExecStatus  string    `json:"exec_status,omitempty"`
	FilledPrice float64   `json:"filled_price,omitempty"`
	At          time.Time `json:"at"`
}

func (s *Server) handleSignals(c *gin.Context) {
	if s.recent == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "ledger disabled"})
		return
	}

	limit := defaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRecentLimit)
	}

	records, err := s.recent.Recent(c.Request.Context(), limit)
	if err != nil {
		slog.Warn("control: recent signals failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger read failed"})
		return
	}

	out := make([]recordView, 0, len(records))
	for _, r := range records {
		out = append(out, recordView{
			SignalID:    r.SignalID,
			Stage:       string(r.Stage),
			Disposition: string(r.Disposition),
			Source:      r.Source,
			MarketID:    r.MarketID,
			Side:        string(r.Side),
			Confidence:  r.Confidence,
			Capital:     r.Capital,
			Shares:      r.Shares,
			Reason:      r.Reason,
			ExecStatus:  string(r.ExecStatus),
			FilledPrice: r.FilledPrice,
			At:          r.At,
		})
	}
	c.JSON(http.StatusOK, gin.H{"signals": out})
}

func (s *Server) handleResetKillSwitch(c *gin.Context) {
	s.engine.ResetKillSwitch()
	slog.Warn("control: kill switch reset by operator", "remote", c.ClientIP())
	c.JSON(http.StatusOK, s.engine.Status().Risk)
}
