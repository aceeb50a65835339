package queue

import (
	"context"
	"sync"
)

// Memory is a channel-backed Queue for tests and single-process runs. It
// mirrors the redis semantics: bounded redelivery, then dead-letter.
type Memory struct {
	mu            sync.Mutex
	messages      chan Message
	attempts      map[string]int
	dead          []Message
	maxDeliveries int
	closeOnce     sync.Once
	closed        chan struct{}
}

func NewMemory(maxDeliveries int) *Memory {
	if maxDeliveries <= 0 {
		maxDeliveries = DefaultMaxDeliveries
	}

	return &Memory{
		messages:      make(chan Message, 1024),
		attempts:      make(map[string]int),
		maxDeliveries: maxDeliveries,
		closed:        make(chan struct{}),
	}
}

func (q *Memory) Enqueue(ctx context.Context, msg Message) error {
	select {
	case q.messages <- msg:
		return nil
	case <-q.closed:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Memory) Dequeue(ctx context.Context) (Delivery, error) {
	select {
	case msg := <-q.messages:
		q.mu.Lock()
		q.attempts[msg.JobID]++
		attempt := q.attempts[msg.JobID]
		q.mu.Unlock()

		return &memoryDelivery{queue: q, msg: msg, attempt: attempt}, nil
	case <-q.closed:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Memory) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })

	return nil
}

// DeadLetters returns the messages that exhausted their delivery budget.
func (q *Memory) DeadLetters() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Message, len(q.dead))
	copy(out, q.dead)

	return out
}

type memoryDelivery struct {
	queue   *Memory
	msg     Message
	attempt int
}

func (d *memoryDelivery) Message() Message { return d.msg }

func (d *memoryDelivery) Attempt() int { return d.attempt }

func (d *memoryDelivery) Ack(context.Context) error {
	d.queue.mu.Lock()
	delete(d.queue.attempts, d.msg.JobID)
	d.queue.mu.Unlock()

	return nil
}

func (d *memoryDelivery) Nack(ctx context.Context) error {
	if d.attempt >= d.queue.maxDeliveries {
		d.queue.mu.Lock()
		d.queue.dead = append(d.queue.dead, d.msg)
		delete(d.queue.attempts, d.msg.JobID)
		d.queue.mu.Unlock()

		return nil
	}

	return d.queue.Enqueue(ctx, d.msg)
}
