// Package worker runs the analysis pipeline: fetch, normalize, classify,
// tokenize, aggregate, persist.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/utanutan/youtube-comment-analyzer/internal/analysis"
	"github.com/utanutan/youtube-comment-analyzer/internal/domain"
	"github.com/utanutan/youtube-comment-analyzer/internal/observability"
	"github.com/utanutan/youtube-comment-analyzer/internal/queue"
	"github.com/utanutan/youtube-comment-analyzer/internal/sentiment"
	"github.com/utanutan/youtube-comment-analyzer/internal/storage"
	"github.com/utanutan/youtube-comment-analyzer/internal/textnorm"
	"github.com/utanutan/youtube-comment-analyzer/internal/youtube"
)

// CommentSource fetches up to maxComments comments for a video, reporting
// running counts through onPage.
type CommentSource interface {
	FetchComments(ctx context.Context, videoID string, maxComments int, includeReplies bool, onPage youtube.ProgressFunc) ([]domain.Comment, error)
}

// SentimentAnalyzer classifies texts positionally. The returned slice always
// has the same length as the input.
type SentimentAnalyzer interface {
	AnalyzeBatch(ctx context.Context, texts []string, onProgress sentiment.ProgressFunc) []sentiment.Result
}

// TokenExtractor produces aggregation tokens from normalized text.
type TokenExtractor interface {
	Tokenize(clean string) []string
}

type Options struct {
	IncludeReplies bool
	TopTokenCount  int
	PurgeInterval  time.Duration
}

// Worker consumes jobs from the queue and drives each one through the
// pipeline to a terminal state.
type Worker struct {
	store     storage.Store
	queue     queue.Queue
	source    CommentSource
	analyzer  SentimentAnalyzer
	extractor TokenExtractor
	opts      Options
	logger    *zerolog.Logger
}

func New(store storage.Store, q queue.Queue, source CommentSource, analyzer SentimentAnalyzer, extractor TokenExtractor, opts Options, logger *zerolog.Logger) *Worker {
	if opts.TopTokenCount <= 0 {
		opts.TopTokenCount = analysis.DefaultTopTokens
	}

	if opts.PurgeInterval <= 0 {
		opts.PurgeInterval = time.Hour
	}

	return &Worker{
		store:     store,
		queue:     q,
		source:    source,
		analyzer:  analyzer,
		extractor: extractor,
		opts:      opts,
		logger:    logger,
	}
}

// Run consumes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Msg("worker started")

	go w.purgeLoop(ctx)

	for {
		delivery, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info().Msg("worker stopping")

				return nil
			}

			w.logger.Error().Err(err).Msg("dequeue failed")

			continue
		}

		w.handle(ctx, delivery)
	}
}

func (w *Worker) handle(ctx context.Context, delivery queue.Delivery) {
	msg := delivery.Message()
	start := time.Now()

	logger := w.logger.With().
		Str("job_id", msg.JobID).
		Str("video_id", msg.VideoID).
		Int("attempt", delivery.Attempt()).
		Logger()

	job, err := w.store.Get(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The job record is gone or expired; the message is stale.
			logger.Warn().Err(err).Msg("dropping message without job record")

			if ackErr := delivery.Ack(ctx); ackErr != nil {
				logger.Error().Err(ackErr).Msg("failed to ack stale message")
			}

			return
		}

		// Transient store failure; keep the message alive so the
		// redelivery budget applies.
		logger.Error().Err(err).Msg("failed to load job")
		w.settle(ctx, delivery, false, &logger)

		return
	}

	if job.Status.Terminal() {
		// Redelivery of an already finished job; settle without rerunning.
		logger.Info().Str("status", string(job.Status)).Msg("job already terminal, acking")

		if ackErr := delivery.Ack(ctx); ackErr != nil {
			logger.Error().Err(ackErr).Msg("failed to ack finished job")
		}

		return
	}

	if err := w.transition(ctx, msg.JobID, domain.StatusRunning, nil, nil); err != nil {
		logger.Error().Err(err).Msg("failed to mark job running")
		w.settle(ctx, delivery, false, &logger)

		return
	}

	result, err := w.process(ctx, msg, &logger)
	if err != nil {
		observability.JobsProcessed.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Msg("job failed")

		jobErr := classifyFailure(err)
		if updErr := w.transition(ctx, msg.JobID, domain.StatusFailed, nil, jobErr); updErr != nil {
			logger.Error().Err(updErr).Msg("failed to record job failure")
		}

		// Nack anyway: on a transient fault a later attempt may succeed
		// and the handler tolerates terminal-state redeliveries.
		w.settle(ctx, delivery, false, &logger)

		return
	}

	if err := w.transition(ctx, msg.JobID, domain.StatusCompleted, result, nil); err != nil {
		logger.Error().Err(err).Msg("failed to store result")
		w.settle(ctx, delivery, false, &logger)

		return
	}

	observability.JobsProcessed.WithLabelValues("completed").Inc()
	observability.JobDuration.Observe(time.Since(start).Seconds())
	logger.Info().
		Int("comments", result.Summary.TotalComments).
		Dur("took", time.Since(start)).
		Msg("job completed")

	w.settle(ctx, delivery, true, &logger)
}

func (w *Worker) process(ctx context.Context, msg queue.Message, logger *zerolog.Logger) (*domain.Result, error) {
	comments, err := w.source.FetchComments(ctx, msg.VideoID, msg.MaxComments, w.opts.IncludeReplies, func(fetched int) {
		// A page may overshoot the cap before the fetcher truncates.
		if fetched > msg.MaxComments {
			fetched = msg.MaxComments
		}

		patch := storage.Patch{Progress: &domain.Progress{Fetched: fetched, Total: msg.MaxComments}}
		if err := w.store.Update(ctx, msg.JobID, patch); err != nil {
			logger.Warn().Err(err).Msg("failed to update fetch progress")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("fetch comments: %w", err)
	}

	observability.CommentsFetched.Add(float64(len(comments)))
	logger.Info().Int("count", len(comments)).Msg("comments fetched")

	texts := make([]string, len(comments))
	for i := range comments {
		comments[i].TextClean = textnorm.Normalize(comments[i].TextOriginal)
		texts[i] = comments[i].TextClean
	}

	results := w.analyzer.AnalyzeBatch(ctx, texts, func(analyzed, total int) {
		patch := storage.Patch{Progress: &domain.Progress{
			Fetched:  len(comments),
			Analyzed: analyzed,
			Total:    total,
		}}
		if err := w.store.Update(ctx, msg.JobID, patch); err != nil {
			logger.Warn().Err(err).Msg("failed to update analysis progress")
		}
	})

	for i := range comments {
		comments[i].SentimentLabel = results[i].Label
		comments[i].SentimentScore = results[i].Score
		comments[i].SentimentReason = results[i].Reason
		comments[i].Tokens = w.extractor.Tokenize(comments[i].TextClean)
	}

	summary := analysis.BuildSummary(comments, w.opts.TopTokenCount)

	return &domain.Result{Summary: summary, Comments: comments}, nil
}

func (w *Worker) transition(ctx context.Context, jobID string, to domain.Status, result *domain.Result, jobErr *domain.JobError) error {
	patch := storage.Patch{Status: &to, Result: result, Error: jobErr}

	return w.store.Update(ctx, jobID, patch)
}

func (w *Worker) settle(ctx context.Context, delivery queue.Delivery, ok bool, logger *zerolog.Logger) {
	var err error
	if ok {
		err = delivery.Ack(ctx)
	} else {
		err = delivery.Nack(ctx)
	}

	if err != nil {
		logger.Error().Err(err).Bool("ack", ok).Msg("failed to settle delivery")
	}
}

func (w *Worker) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(w.opts.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := w.store.DeleteExpired(ctx)
			if err != nil {
				w.logger.Error().Err(err).Msg("failed to purge expired jobs")

				continue
			}

			if removed > 0 {
				observability.JobsExpired.Add(float64(removed))
				w.logger.Info().Int64("removed", removed).Msg("purged expired jobs")
			}
		}
	}
}

func classifyFailure(err error) *domain.JobError {
	code := "internal_error"

	switch {
	case errors.Is(err, domain.ErrRateLimitExceeded):
		code = "rate_limit_exceeded"
	case errors.Is(err, domain.ErrFetchFailed):
		code = "fetch_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = "canceled"
	}

	return &domain.JobError{Code: code, Message: err.Error()}
}
