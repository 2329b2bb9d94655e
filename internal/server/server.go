// Package server exposes evaluations over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"valuation/internal/appraisal"
	"valuation/internal/cache"
	"valuation/internal/config"
	"valuation/internal/types"
)

// Dataset is the transaction set loaded at start-up for GET /evaluate.
type Dataset struct {
	Target  types.Record
	Records []types.Record
}

// Server routes API requests to the evaluator.
type Server struct {
	router    *gin.Engine
	evaluator *cache.Evaluator
	defaults  config.Evaluation
	dataset   *Dataset
	logger    *slog.Logger
}

// New builds the router. dataset may be nil, in which case GET /evaluate
// answers 503.
func New(evaluator *cache.Evaluator, defaults config.Evaluation, dataset *Dataset, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		evaluator: evaluator,
		defaults:  defaults,
		dataset:   dataset,
		logger:    logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.health)
	r.POST("/comparables", s.comparables)
	r.POST("/idw", s.idw)
	r.POST("/evaluate", s.evaluate)
	r.GET("/evaluate", s.evaluateDataset)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "ok", "dataset": s.dataset != nil}
	if s.dataset != nil {
		body["records"] = len(s.dataset.Records)
		body["target"] = s.dataset.Target.Identifier
	}
	c.JSON(http.StatusOK, body)
}

// status maps engine errors to HTTP codes.
func status(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidCoordinate),
		errors.Is(err, types.ErrInvalidParameters),
		errors.Is(err, types.ErrInvalidPower):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	code := status(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func (s *Server) params(target types.Record, q evaluateQuery) appraisal.Params {
	maxDist := s.defaults.MaxDistanceKm
	if q.MaxDistanceKm != nil {
		maxDist = *q.MaxDistanceKm
	}
	tol := s.defaults.AreaToleranceM2
	if q.AreaTolerance != nil {
		tol = *q.AreaTolerance
	}
	power := s.defaults.Power
	if q.Power != nil {
		power = *q.Power
	}

	p := appraisal.ParamsFromTolerance(target, maxDist, tol, power)
	if q.MinArea != nil {
		p.MinArea = *q.MinArea
	}
	if q.MaxArea != nil {
		p.MaxArea = *q.MaxArea
	}
	return p
}
