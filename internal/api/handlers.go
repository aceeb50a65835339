package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/utanutan/youtube-comment-analyzer/internal/domain"
	"github.com/utanutan/youtube-comment-analyzer/internal/export"
	"github.com/utanutan/youtube-comment-analyzer/internal/queue"
	"github.com/utanutan/youtube-comment-analyzer/internal/youtube"
)

type submitRequest struct {
	VideoID     string `json:"videoId"`
	MaxComments int    `json:"maxComments"`
	Lang        string `json:"lang"`
}

type submitResponse struct {
	JobID     string `json:"jobId"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

func (s *Server) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "validation_error", "request body must be valid JSON")

		return
	}

	videoID, err := youtube.ExtractVideoID(req.VideoID)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "validation_error", fmt.Sprintf("unrecognized video id or url: %q", req.VideoID))

		return
	}

	if req.MaxComments < 0 {
		errorResponse(c, http.StatusBadRequest, "validation_error", "maxComments must not be negative")

		return
	}

	maxComments := req.MaxComments
	if maxComments == 0 {
		maxComments = s.opts.DefaultMaxComments
	}

	if maxComments > s.opts.MaxCommentsCeiling {
		maxComments = s.opts.MaxCommentsCeiling
	}

	lang := req.Lang
	if lang == "" {
		lang = "ja"
	}

	job := domain.NewJob(uuid.NewString(), videoID, domain.Params{MaxComments: maxComments, Lang: lang}, s.opts.JobRetention)

	ctx := c.Request.Context()

	if err := s.store.Create(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("video_id", videoID).Msg("failed to create job")
		errorResponse(c, http.StatusInternalServerError, "internal_error", "failed to create job")

		return
	}

	msg := queue.Message{JobID: job.ID, VideoID: videoID, MaxComments: maxComments, Lang: lang}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to enqueue job")

		// The job never entered the pipeline, so remove the record instead
		// of forcing it into a terminal state it never earned.
		if delErr := s.store.Delete(ctx, job.ID); delErr != nil {
			s.logger.Error().Err(delErr).Str("job_id", job.ID).Msg("failed to roll back job record")
		}

		errorResponse(c, http.StatusInternalServerError, "internal_error", "failed to enqueue job")

		return
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("video_id", videoID).
		Int("max_comments", maxComments).
		Msg("job accepted")

	c.JSON(http.StatusAccepted, submitResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) status(c *gin.Context) {
	job, err := s.store.Get(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "not_found", "unknown job id")

			return
		}

		s.logger.Error().Err(err).Msg("failed to load job")
		errorResponse(c, http.StatusInternalServerError, "internal_error", "failed to load job")

		return
	}

	c.JSON(http.StatusOK, job)
}

func (s *Server) export(c *gin.Context) {
	job, err := s.store.Get(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "not_found", "unknown job id")

			return
		}

		s.logger.Error().Err(err).Msg("failed to load job")
		errorResponse(c, http.StatusInternalServerError, "internal_error", "failed to load job")

		return
	}

	if job.Status != domain.StatusCompleted || job.Result == nil {
		errorResponse(c, http.StatusBadRequest, "not_ready", "job has not completed")

		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(job.VideoID)))
	c.Status(http.StatusOK)

	if err := export.WriteCSV(c.Writer, job.Result.Comments); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to stream export")
	}
}

func errorResponse(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": code, "message": message})
}
