// Package server exposes queue counters over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/huynhanx03/go-cqueue/pkg/datastructs/queue"
	"github.com/huynhanx03/go-cqueue/pkg/settings"
)

const shutdownTimeout = 5 * time.Second

// StatsSource is anything that can report queue counters.
type StatsSource interface {
	Stats() queue.Stats
}

// NewEngine builds the gin engine serving GET /stats and GET /healthz.
func NewEngine(src StatsSource, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, src.Stats())
	})
	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// Server serves the stats engine until Stop is called.
type Server struct {
	http *http.Server
	log  *zap.Logger
}

// New creates a stats server for src listening on cfg.Host:cfg.Port.
// The gin mode is process-wide and is left to the caller.
func New(cfg settings.Server, src StatsSource, log *zap.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
			Handler:           NewEngine(src, log),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Start listens in the background. Listen errors other than a clean close
// are logged.
func (s *Server) Start() {
	go func() {
		s.log.Info("stats server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("stats server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
