// Package queue provides at-least-once delivery of analysis jobs to workers.
package queue

import "context"

// Message is the unit of work handed from the API to a worker. It carries
// just enough to run the job; the authoritative record lives in the store.
type Message struct {
	JobID       string `json:"jobId"`
	VideoID     string `json:"videoId"`
	MaxComments int    `json:"maxComments"`
	Lang        string `json:"lang"`
}

// Delivery is a single receipt of a message. The consumer must settle it
// exactly once: Ack on success, Nack to redeliver or dead-letter.
type Delivery interface {
	Message() Message
	// Attempt is 1 on first delivery and increments on each redelivery.
	Attempt() int
	Ack(ctx context.Context) error
	Nack(ctx context.Context) error
}

// Queue is the job transport. Dequeue blocks until a message is available
// or the context is done.
type Queue interface {
	Enqueue(ctx context.Context, msg Message) error
	Dequeue(ctx context.Context) (Delivery, error)
	Close() error
}

// DefaultMaxDeliveries bounds redelivery before a message is dead-lettered.
const DefaultMaxDeliveries = 3
