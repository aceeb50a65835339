// Package app wires the application together and exposes its two
// operational modes:
//
//   - API mode: HTTP intake, status, and export endpoints
//   - Worker mode: queue consumer running the analysis pipeline
//
// Both modes share the job store, the queue, and the health server; they are
// deployed as separate processes in production and can be combined for
// local development.
package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/utanutan/youtube-comment-analyzer/internal/api"
	"github.com/utanutan/youtube-comment-analyzer/internal/config"
	"github.com/utanutan/youtube-comment-analyzer/internal/observability"
	"github.com/utanutan/youtube-comment-analyzer/internal/queue"
	"github.com/utanutan/youtube-comment-analyzer/internal/sentiment"
	"github.com/utanutan/youtube-comment-analyzer/internal/storage"
	"github.com/utanutan/youtube-comment-analyzer/internal/tokenize"
	"github.com/utanutan/youtube-comment-analyzer/internal/worker"
	"github.com/utanutan/youtube-comment-analyzer/internal/youtube"
)

type App struct {
	cfg    *config.Config
	store  storage.Store
	queue  queue.Queue
	logger *zerolog.Logger
}

func New(cfg *config.Config, store storage.Store, q queue.Queue, logger *zerolog.Logger) *App {
	return &App{cfg: cfg, store: store, queue: q, logger: logger}
}

// RunAPI serves the HTTP intake and status surface until ctx is canceled.
func (a *App) RunAPI(ctx context.Context) error {
	server := api.NewServer(a.store, a.queue, api.Options{
		Port:               a.cfg.HTTPPort,
		DefaultMaxComments: a.cfg.DefaultMaxComments,
		MaxCommentsCeiling: a.cfg.MaxCommentsCeiling,
		JobRetention:       a.cfg.JobRetention,
		AllowedOrigins:     a.cfg.CORSAllowedOrigins,
	}, a.logger)

	return server.Run(ctx)
}

// RunWorker consumes analysis jobs until ctx is canceled.
func (a *App) RunWorker(ctx context.Context) error {
	retry := youtube.RetryConfig{
		MaxRetries:   a.cfg.FetchMaxRetries,
		InitialDelay: a.cfg.FetchInitialBackoff,
	}

	source, err := youtube.New(ctx, a.cfg.YouTubeAPIKey, retry, a.logger)
	if err != nil {
		return err
	}

	extractor, err := tokenize.New()
	if err != nil {
		return err
	}

	analyzer := sentiment.New(a.cfg.OpenAIAPIKey, a.cfg.LLMModel, a.cfg.SentimentBatchSize, a.logger)

	w := worker.New(a.store, a.queue, source, analyzer, extractor, worker.Options{
		IncludeReplies: a.cfg.IncludeReplies,
		TopTokenCount:  a.cfg.TopTokenCount,
		PurgeInterval:  a.cfg.PurgeInterval,
	}, a.logger)

	return w.Run(ctx)
}

// StartHealthServer serves liveness, readiness and metrics endpoints.
func (a *App) StartHealthServer(ctx context.Context) error {
	server := observability.NewServer(a.store, a.cfg.HealthPort, a.logger)

	return server.Start(ctx)
}
