package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"streamystats/internal/chart"
	"streamystats/internal/config"
	"streamystats/internal/logger"
	"streamystats/internal/stats"
	"streamystats/internal/watchtime"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	engine   *gin.Engine
	cfg      *config.Config
	store    stats.Store
	bucketer *watchtime.Bucketer
	charts   *chart.Cache
	now      func() time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces time.Now as the anchor for chart windows.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithChartCache serves rendered charts from c when possible.
func WithChartCache(c *chart.Cache) Option {
	return func(s *Server) {
		s.charts = c
	}
}

func New(cfg *config.Config, store stats.Store, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.Middleware(cfg.LogSkipPaths...))

	srv := &Server{
		engine:   engine,
		cfg:      cfg,
		store:    store,
		bucketer: watchtime.New(cfg.Chart.Keys()...),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	api := s.engine.Group("/api")
	api.GET("/version", s.handleVersion)
	api.GET("/chart-config", s.handleChartConfig)
	api.GET("/servers", s.handleServers)
	api.GET("/servers/:id/watchtime", s.handleWatchtime)
	api.GET("/servers/:id/watchtime/chart.png", s.handleWatchtimeChart)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Infof("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}
