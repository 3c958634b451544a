package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/captiongen/logger"
	"github.com/kbukum/captiongen/observability"
	"github.com/kbukum/captiongen/server/endpoint"
	"github.com/kbukum/captiongen/server/middleware"
)

// Server is the HTTP server: a Gin engine behind a net/http middleware
// chain, served over HTTP/1.1 and h2c.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     Config
	bodyLimit  int64
	log        *logger.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New creates a Server. Call ApplyMiddleware before registering routes.
func New(cfg Config, log *logger.Logger) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	limit, _ := cfg.BodyLimit()

	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("server.trusted_proxies: %w", err)
	}
	engine.HandleMethodNotAllowed = true

	s := &Server{
		engine:    engine,
		config:    cfg,
		bodyLimit: limit,
		log:       log.WithComponent("server"),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.wrap(engine),
		ReadTimeout:       time.Duration(cfg.ReadTimeout) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:       time.Duration(cfg.IdleTimeout) * time.Second,
	}
	return s, nil
}

// wrap puts the transport-level middleware in front of h and enables h2c.
func (s *Server) wrap(h http.Handler) http.Handler {
	chain := middleware.Chain(
		middleware.RequestID(),
		middleware.SecurityHeaders(),
		middleware.CORS(&s.config.CORS),
		middleware.BodySizeLimit(s.bodyLimit),
	)
	return h2c.NewHandler(chain(h), &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          120 * time.Second,
	})
}

// GinEngine returns the underlying Gin engine for route registration.
func (s *Server) GinEngine() *gin.Engine {
	return s.engine
}

// Handler returns the full handler stack, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Config returns the effective configuration.
func (s *Server) Config() Config {
	return s.config
}

// BodyLimit is the request body cap in bytes.
func (s *Server) BodyLimit() int64 {
	return s.bodyLimit
}

// Start binds the port and begins serving. It returns once the listener is
// bound so the caller knows the port is ready; serving continues in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	s.log.Info("HTTP server started", map[string]interface{}{
		"addr": listener.Addr().String(),
	})
	return nil
}

// Stop gracefully shuts down the server. In-flight caption runs get until
// ctx expires, or 30 seconds without a deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error("Server shutdown error", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.log.Info("HTTP server shut down successfully")
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// ApplyMiddleware installs the Gin-level middleware: panic recovery and
// request logging. metrics may be nil.
func (s *Server) ApplyMiddleware(metrics *observability.Metrics) {
	s.engine.Use(middleware.Recovery(s.log))
	var rec middleware.RequestRecorder
	if metrics != nil {
		rec = metrics
	}
	s.engine.Use(middleware.RequestLogger(s.log, rec))
	s.engine.NoRoute(endpoint.NotFound())
	s.engine.NoMethod(endpoint.MethodNotAllowed())
}

// RegisterDefaultEndpoints registers /health and /info.
func (s *Server) RegisterDefaultEndpoints(serviceName string, checker endpoint.HealthChecker) {
	s.engine.GET("/health", endpoint.Health(serviceName, checker))
	s.engine.GET("/info", endpoint.Info(serviceName))
}

// ApplyDefaults applies the middleware and registers default endpoints.
func (s *Server) ApplyDefaults(serviceName string, metrics *observability.Metrics, checker endpoint.HealthChecker) {
	s.ApplyMiddleware(metrics)
	s.RegisterDefaultEndpoints(serviceName, checker)
}
