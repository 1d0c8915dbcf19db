// Package api exposes the boundary operations over HTTP. Every handler
// dispatches through the command and query buses.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"appdeck/internal/application/events"
	"appdeck/internal/infra/token"
	"appdeck/pkg/cqrs"
	"appdeck/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// Subscriber is the part of the event broker the stream endpoint uses.
type Subscriber interface {
	Subscribe(appID string) *events.Subscription
}

// TokenVerifier checks capability tokens presented by applications.
type TokenVerifier interface {
	Verify(token string) (*token.Claims, error)
}

// Dependencies groups what the server dispatches to.
type Dependencies struct {
	Commands cqrs.CommandBus
	Queries  cqrs.QueryBus
	Events   Subscriber
	Tokens   TokenVerifier
	// NewID generates run and application IDs. Defaults to uuid.NewString.
	NewID func() string
}

// Server serves the HTTP API.
type Server struct {
	deps   Dependencies
	engine *gin.Engine
	http   *http.Server
}

// NewServer builds the router. It does not start listening.
func NewServer(listenAddress string, deps Dependencies) *Server {
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{deps: deps, engine: engine}
	s.routes()
	s.http = &http.Server{
		Addr:              listenAddress,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       time.Minute,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	{
		api.GET("/self", bearerAuth(s.deps.Tokens), s.handleSelf)

		apps := api.Group("/apps")
		{
			apps.GET("", s.handleListApps)
			apps.POST("/import", s.handleImport)
			apps.POST("/descriptor", s.handleImportDescriptor)
			apps.GET("/:id", s.handleGetApp)
			apps.DELETE("/:id", s.handleRemove)
			apps.POST("/:id/deploy", s.handleDeploy)
			apps.GET("/:id/descriptor", s.handleGetDescriptor)
			apps.PUT("/:id/descriptor", s.handlePutDescriptor)
			apps.POST("/:id/reconcile", s.handleReconcile)
			apps.POST("/:id/start", s.handleControl(true))
			apps.POST("/:id/stop", s.handleControl(false))
			apps.PUT("/:id/auto-update", s.handleAutoUpdate)
			apps.GET("/:id/events", s.handleEvents)
			apps.GET("/:id/events/stream", s.handleEventStream)
		}
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens until Shutdown is called or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	log.Info("Starting HTTP server", "address", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return log.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits briefly for in-flight ones.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		log.Warn("HTTP server graceful shutdown failed", "error", err)
		return
	}
	log.Info("HTTP server stopped")
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
