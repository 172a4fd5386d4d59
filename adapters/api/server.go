// Package api serves stored analysis runs over a read-only JSON API.
package api

import (
	"net/http"
	"strconv"
	"time"

	"echostrata/domain/core"
	"echostrata/domain/survey"
	"echostrata/internal/errors"
	"echostrata/internal/logging"
	"echostrata/ports"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server exposes runs from a RunRepository
type Server struct {
	router *gin.Engine
	runs   ports.RunRepository
	logger *zap.Logger
}

// NewServer creates a server with its routes registered
func NewServer(runs ports.RunRepository, logger *zap.Logger) *Server {
	s := &Server{
		router: gin.New(),
		runs:   runs,
		logger: logging.OrNop(logger).Named("api"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the underlying http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	s.router.Use(requestLogger(s.logger))
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		s.logger.Error("handler panicked", zap.Any("panic", recovered))
		s.fail(c, errors.InternalError("internal server error"))
		c.Abort()
	}))
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	runs := s.router.Group("/runs")
	runs.GET("", s.handleListRuns)
	runs.GET("/:id", s.handleGetRun)
	runs.GET("/:id/biomass", s.handleBiomass)
	runs.GET("/:id/apportioned", s.handleApportioned)
}

// Start serves on addr until the listener fails
func (s *Server) Start(addr string) error {
	s.logger.Info("starting api server", zap.String("addr", addr))
	return s.router.Run(addr)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListRuns(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		s.fail(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.fail(c, err)
		return
	}

	runs, err := s.runs.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		s.fail(c, err)
		return
	}
	if runs == nil {
		runs = []*ports.RunRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "limit": limit, "offset": offset})
}

func (s *Server) handleGetRun(c *gin.Context) {
	run, err := s.runs.GetRun(c.Request.Context(), runID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleBiomass(c *gin.Context) {
	rows, err := s.runs.BiomassRows(c.Request.Context(), runID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rows":            rows,
		"total_biomass":   rows.TotalBiomass(),
		"total_abundance": rows.TotalAbundance(),
		"extent":          rows.Extent(),
	})
}

func (s *Server) handleApportioned(c *gin.Context) {
	var sex *survey.Sex
	if label := c.Query("sex"); label != "" {
		parsed, ok := survey.ParseSex(label)
		if !ok {
			s.fail(c, errors.InvalidInput("sex must be one of all, male, female, unsexed"))
			return
		}
		sex = &parsed
	}

	cells, err := s.runs.ApportionedCells(c.Request.Context(), runID(c), sex)
	if err != nil {
		s.fail(c, err)
		return
	}
	total := 0.0
	for _, cell := range cells {
		if sex != nil || cell.Sex == survey.SexAll {
			total += cell.Biomass
		}
	}
	c.JSON(http.StatusOK, gin.H{"cells": cells, "total_biomass": total})
}

// fail writes err with the status of its error code
func (s *Server) fail(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func runID(c *gin.Context) core.RunID {
	return core.RunID(c.Param("id"))
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.InvalidInput(key + " must be a non-negative integer")
	}
	return v, nil
}
