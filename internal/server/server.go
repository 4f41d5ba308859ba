// Package server exposes the synchronous boundary of the system: a trigger
// endpoint that dispatches coding tasks, query endpoints over the event log
// and an SSE stream for live session timelines. It never returns task
// results; after the trigger acknowledgment everything flows through events.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"tiny-backspace/internal/dispatch"
	"tiny-backspace/internal/eventstore"
	"tiny-backspace/internal/relay"
)

// Config carries the HTTP surface settings.
type Config struct {
	Addr           string
	AllowedOrigins []string
	Debug          bool
}

// Server wires the dispatcher, store and relay behind the HTTP routes.
type Server struct {
	cfg        Config
	store      eventstore.Store
	dispatcher *dispatch.Dispatcher
	relay      relay.Relay
	engine     *gin.Engine
	metrics    *metrics
	logger     *log.Logger
}

// New builds the router and handlers.
func New(cfg Config, store eventstore.Store, dispatcher *dispatch.Dispatcher, rel relay.Relay, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	engine.Use(cors.New(corsConfig))

	s := &Server{
		cfg:        cfg,
		store:      store,
		dispatcher: dispatcher,
		relay:      rel,
		engine:     engine,
		metrics:    newMetrics(),
		logger:     logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(s.metrics.handler()))
	s.engine.POST("/api/code", s.handleCode)
	s.engine.GET("/api/events", s.handleRecent)
	s.engine.GET("/api/sessions/:id/events", s.handleSessionEvents)
	s.engine.GET("/api/stream/:id", s.handleStream)
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Println("listening on", s.cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
