// Package server exposes the engine over a small admin HTTP API.
//
//	GET    /healthz               liveness
//	GET    /status                engine status
//	POST   /groups/:id/check      force a batch cycle for a group
//	DELETE /groups/:id/buffer     discard a group's buffer unanalyzed
//	GET    /groups/:id/history    violation history for a group
//	GET    /metrics               prometheus metrics
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gzhole/groupguard/internal/engine"
	"github.com/gzhole/groupguard/internal/history"
)

const shutdownTimeout = 5 * time.Second

// Engine is the part of the engine the admin API drives.
type Engine interface {
	Status() engine.Status
	ForceCheck(ctx context.Context, groupID string, h engine.Handle) engine.Report
	ResetGroup(groupID string) engine.GroupReset
}

type Server struct {
	addr    string
	engine  Engine
	history history.Store
	log     *zap.Logger
	router  *gin.Engine
}

// New builds the router. hist may be nil, in which case the history route
// reports 404.
func New(addr string, eng Engine, hist history.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{addr: addr, engine: eng, history: hist, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.GET("/healthz", s.healthz)
	r.GET("/status", s.status)
	r.POST("/groups/:id/check", s.check)
	r.GET("/groups/:id/history", s.groupHistory)
	r.DELETE("/groups/:id/buffer", s.resetBuffer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router = r
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("admin API listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("admin API stopped")
	return nil
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) check(c *gin.Context) {
	groupID := c.Param("id")
	rep := s.engine.ForceCheck(c.Request.Context(), groupID, nil)
	s.log.Info("manual check", zap.String("group", groupID), zap.String("summary", rep.Summary()))
	c.JSON(http.StatusOK, rep)
}

func (s *Server) resetBuffer(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.ResetGroup(c.Param("id")))
}

func (s *Server) groupHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history not available"})
		return
	}
	records, err := s.history.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.log.Error("list history failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"group": c.Param("id"), "records": records})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("admin request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
