package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/utanutan/youtube-comment-analyzer/internal/observability"
)

const (
	mainKey       = "yca:jobs"
	processingKey = "yca:jobs:processing"
	attemptsKey   = "yca:jobs:attempts"
	deadKey       = "yca:jobs:dead"

	popTimeout = 5 * time.Second
)

// Redis implements Queue on top of redis lists. A dequeue atomically moves
// the payload from the main list to a processing list, so a worker crash
// leaves the message recoverable rather than lost.
type Redis struct {
	client        *redis.Client
	maxDeliveries int
	logger        *zerolog.Logger
}

func NewRedis(ctx context.Context, addr, password string, maxDeliveries int, logger *zerolog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if maxDeliveries <= 0 {
		maxDeliveries = DefaultMaxDeliveries
	}

	return &Redis{client: client, maxDeliveries: maxDeliveries, logger: logger}, nil
}

func (q *Redis) Enqueue(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := q.client.LPush(ctx, mainKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueue job %s: %w", msg.JobID, err)
	}

	return nil
}

func (q *Redis) Dequeue(ctx context.Context) (Delivery, error) {
	for {
		payload, err := q.client.BRPopLPush(ctx, mainKey, processingKey, popTimeout).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}

				continue
			}

			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			return nil, fmt.Errorf("dequeue: %w", err)
		}

		var msg Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			// Unparseable payloads go straight to the dead list.
			q.logger.Error().Err(err).Str("payload", payload).Msg("discarding malformed queue message")
			q.moveToDead(ctx, payload, msg.JobID)

			continue
		}

		attempt, err := q.client.HIncrBy(ctx, attemptsKey, msg.JobID, 1).Result()
		if err != nil {
			return nil, fmt.Errorf("count delivery of job %s: %w", msg.JobID, err)
		}

		return &redisDelivery{queue: q, payload: payload, msg: msg, attempt: int(attempt)}, nil
	}
}

func (q *Redis) Close() error {
	return q.client.Close()
}

func (q *Redis) moveToDead(ctx context.Context, payload, jobID string) {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, processingKey, 1, payload)
	pipe.LPush(ctx, deadKey, payload)

	if jobID != "" {
		pipe.HDel(ctx, attemptsKey, jobID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		q.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to dead-letter message")
	}

	observability.QueueDeadLettered.Inc()
}

type redisDelivery struct {
	queue   *Redis
	payload string
	msg     Message
	attempt int
}

func (d *redisDelivery) Message() Message { return d.msg }

func (d *redisDelivery) Attempt() int { return d.attempt }

func (d *redisDelivery) Ack(ctx context.Context) error {
	pipe := d.queue.client.TxPipeline()
	pipe.LRem(ctx, processingKey, 1, d.payload)
	pipe.HDel(ctx, attemptsKey, d.msg.JobID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ack job %s: %w", d.msg.JobID, err)
	}

	return nil
}

func (d *redisDelivery) Nack(ctx context.Context) error {
	if d.attempt >= d.queue.maxDeliveries {
		d.queue.logger.Warn().
			Str("job_id", d.msg.JobID).
			Int("attempt", d.attempt).
			Msg("delivery budget exhausted, dead-lettering")
		d.queue.moveToDead(ctx, d.payload, d.msg.JobID)

		return nil
	}

	pipe := d.queue.client.TxPipeline()
	pipe.LRem(ctx, processingKey, 1, d.payload)
	pipe.LPush(ctx, mainKey, d.payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("nack job %s: %w", d.msg.JobID, err)
	}

	observability.QueueRedeliveries.Inc()

	return nil
}
