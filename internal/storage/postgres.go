package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/utanutan/youtube-comment-analyzer/internal/domain"
	"github.com/utanutan/youtube-comment-analyzer/migrations"
)

const (
	maxConnectionRetries = 10
	connectionRetrySleep = 2 * time.Second
	migrationLockID      = 1000
	uniqueViolationCode  = "23505"
)

// Postgres is the durable job store. The pool is a long-lived, process-scoped
// resource established once and reused across jobs.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zerolog.Logger
}

// NewPostgres connects to the database, retrying while it comes up.
func NewPostgres(ctx context.Context, dsn string, logger *zerolog.Logger) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	var pool *pgxpool.Pool

	for i := 0; i < maxConnectionRetries; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return &Postgres{pool: pool, logger: logger}, nil
			}
		}

		if pool != nil {
			pool.Close()
		}

		time.Sleep(connectionRetrySleep)
	}

	return nil, fmt.Errorf("failed to connect to database after retries: %w", err)
}

// Migrate applies the embedded goose migrations under an advisory lock so
// only one process migrates at a time.
func (s *Postgres) Migrate(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return err
	}

	defer func() {
		_, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID)
	}()

	dbSQL := stdlib.OpenDB(*s.pool.Config().ConnConfig)

	defer func() {
		_ = dbSQL.Close()
	}()

	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	if err := goose.Up(dbSQL, "."); err != nil {
		return err
	}

	return nil
}

func (s *Postgres) Create(ctx context.Context, job *domain.Job) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	progress, err := json.Marshal(job.Progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobs (id, video_id, status, params, progress, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		toUUID(job.ID), job.VideoID, string(job.Status), params, progress,
		job.CreatedAt, job.UpdatedAt, job.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("%w: %s", domain.ErrConflict, job.ID)
		}

		return fmt.Errorf("insert job: %w", err)
	}

	return nil
}

func (s *Postgres) Get(ctx context.Context, id string) (*domain.Job, error) {
	uid := toUUID(id)
	if !uid.Valid {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	row := s.pool.QueryRow(ctx, `
		SELECT id, video_id, status, params, progress, result, error,
		       created_at, updated_at, expires_at
		FROM jobs
		WHERE id = $1 AND expires_at > now()`,
		uid,
	)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
		}

		return nil, fmt.Errorf("select job: %w", err)
	}

	return job, nil
}

func (s *Postgres) Update(ctx context.Context, id string, patch Patch) error {
	uid := toUUID(id)
	if !uid.Valid {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	sets := []string{"updated_at = now()"}
	args := []interface{}{uid}

	appendSet := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	guard := ""

	if patch.Status != nil {
		appendSet("status", string(*patch.Status))

		args = append(args, allowedFrom(*patch.Status))
		guard = fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}

	if patch.Progress != nil {
		data, err := json.Marshal(patch.Progress)
		if err != nil {
			return fmt.Errorf("marshal progress: %w", err)
		}

		appendSet("progress", data)
	}

	if patch.Result != nil {
		data, err := json.Marshal(patch.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}

		appendSet("result", data)
	}

	if patch.Error != nil {
		data, err := json.Marshal(patch.Error)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}

		appendSet("error", data)
	}

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf("UPDATE jobs SET %s WHERE id = $1%s", strings.Join(sets, ", "), guard),
		args...,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return s.explainRejectedUpdate(ctx, uid, id, patch.Status)
	}

	return nil
}

// explainRejectedUpdate turns a zero-row update into the right sentinel:
// missing row, terminal status, or an illegal forward step.
func (s *Postgres) explainRejectedUpdate(ctx context.Context, uid pgtype.UUID, id string, next *domain.Status) error {
	var current string

	err := s.pool.QueryRow(ctx, "SELECT status FROM jobs WHERE id = $1", uid).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
		}

		return fmt.Errorf("select job status: %w", err)
	}

	if next == nil {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	if domain.Status(current).Terminal() {
		return fmt.Errorf("%w: %s", domain.ErrTerminalState, id)
	}

	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, *next)
}

// allowedFrom lists the statuses an update to next may start from: next
// itself (a no-op rewrite) plus every legal predecessor.
func allowedFrom(next domain.Status) []string {
	out := []string{string(next)}

	for _, s := range []domain.Status{domain.StatusQueued, domain.StatusRunning, domain.StatusCompleted, domain.StatusFailed} {
		if s.CanTransition(next) {
			out = append(out, string(s))
		}
	}

	return out
}

func (s *Postgres) Delete(ctx context.Context, id string) error {
	uid := toUUID(id)
	if !uid.Valid {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	tag, err := s.pool.Exec(ctx, "DELETE FROM jobs WHERE id = $1", uid)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	return nil
}

func (s *Postgres) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM jobs WHERE expires_at <= now()")
	if err != nil {
		return 0, fmt.Errorf("delete expired jobs: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() {
	s.pool.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		uid                      pgtype.UUID
		status                   string
		params, progress         []byte
		result, jobErr           []byte
		created, updated, expiry time.Time
		job                      domain.Job
	)

	if err := row.Scan(&uid, &job.VideoID, &status, &params, &progress, &result, &jobErr,
		&created, &updated, &expiry); err != nil {
		return nil, err
	}

	job.ID = fromUUID(uid)
	job.Status = domain.Status(status)
	job.CreatedAt = created
	job.UpdatedAt = updated
	job.ExpiresAt = expiry

	if err := json.Unmarshal(params, &job.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}

	if err := json.Unmarshal(progress, &job.Progress); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}

	if len(result) > 0 {
		job.Result = &domain.Result{}
		if err := json.Unmarshal(result, job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}

	if len(jobErr) > 0 {
		job.Error = &domain.JobError{}
		if err := json.Unmarshal(jobErr, job.Error); err != nil {
			return nil, fmt.Errorf("unmarshal error: %w", err)
		}
	}

	return &job, nil
}

// Helpers

func toUUID(id string) pgtype.UUID {
	u, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}

	return pgtype.UUID{Bytes: u, Valid: true}
}

func fromUUID(uid pgtype.UUID) string {
	if !uid.Valid {
		return ""
	}

	return uuid.UUID(uid.Bytes).String()
}
