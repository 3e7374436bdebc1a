package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/septivank/fuel-mileage-worker/internal/config"
	"github.com/septivank/fuel-mileage-worker/internal/service"
	"go.uber.org/zap"
)

// NewRouter wires the entry controller into a gin engine
func NewRouter(svc *service.EntryService, limiter *RateLimiter, requestsPerMinute int, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))

	ec := NewEntryController(svc)
	router.GET("/health", ec.Health)

	v1 := router.Group("/api/v1")
	if limiter != nil {
		v1.Use(limiter.Middleware(requestsPerMinute))
	}
	{
		v1.GET("/entries", ec.ListEntries)
		v1.POST("/entries", ec.CreateEntry)
		v1.PATCH("/entries/:id", ec.UpdateEntry)
		v1.DELETE("/entries/:id", ec.DeleteEntry)
		v1.GET("/metrics", ec.GetMetrics)
		v1.GET("/efficiency", ec.GetEfficiency)
	}

	return router
}

// Server runs the HTTP API
type Server struct {
	srv     *http.Server
	limiter *RateLimiter
	logger  *zap.Logger
	stop    chan struct{}
}

// NewServer builds the API server from configuration
func NewServer(cfg *config.Config, svc *service.EntryService, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	limiter := NewRateLimiter(cfg.HTTP.RateLimitPerMinute, cfg.HTTP.RateLimitBurst)
	router := NewRouter(svc, limiter, cfg.HTTP.RateLimitPerMinute, logger)

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.ServicePort),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		limiter: limiter,
		logger:  logger,
		stop:    make(chan struct{}),
	}
}

// Start listens in the background
func (s *Server) Start() {
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", zap.Error(err))
		}
	}()

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.limiter.Cleanup()
			}
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stop)
	return s.srv.Shutdown(ctx)
}
