// Package api exposes the job intake and status surface over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/utanutan/youtube-comment-analyzer/internal/queue"
	"github.com/utanutan/youtube-comment-analyzer/internal/storage"
)

type Options struct {
	Port               int
	DefaultMaxComments int
	MaxCommentsCeiling int
	JobRetention       time.Duration
	AllowedOrigins     []string
}

type Server struct {
	store  storage.Store
	queue  queue.Queue
	opts   Options
	logger *zerolog.Logger
	engine *gin.Engine
}

func NewServer(store storage.Store, q queue.Queue, opts Options, logger *zerolog.Logger) *Server {
	if opts.DefaultMaxComments <= 0 {
		opts.DefaultMaxComments = 500
	}

	if opts.MaxCommentsCeiling <= 0 {
		opts.MaxCommentsCeiling = 5000
	}

	if opts.JobRetention <= 0 {
		opts.JobRetention = 168 * time.Hour
	}

	s := &Server{store: store, queue: q, opts: opts, logger: logger}
	s.engine = s.buildEngine()

	return s
}

func (s *Server) buildEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.requestLogger())

	corsCfg := cors.DefaultConfig()
	if len(s.opts.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = s.opts.AllowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}

	corsCfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	engine.Use(cors.New(corsCfg))

	engine.POST("/analyze", s.submit)
	engine.GET("/analyze/:jobId", s.status)
	engine.GET("/analyze/:jobId/export", s.export)

	return engine
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.opts.Port),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info().Int("port", s.opts.Port).Msg("api server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
