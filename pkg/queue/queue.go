// Package queue defines the message-queue transport used between the
// discovery pipeline and the export executor.
//
// Delivery is at-least-once; consumers must be idempotent. The concrete SQS
// client lives in the sqs sub-package.
package queue

import (
	"context"
	"errors"
	"fmt"
)

const (
	// MaxBatchSize is the hard per-request entry limit of the transport.
	MaxBatchSize = 10

	// MaxMessageBytes is the per-message payload size cap.
	MaxMessageBytes = 256 * 1024
)

// Sentinel errors for queue operations.
var (
	// ErrThrottled indicates the request was rate limited.
	ErrThrottled = errors.New("request throttled")

	// ErrUnavailable indicates the queue service is unavailable.
	ErrUnavailable = errors.New("queue unavailable")
)

// Entry is one message in a batch send.
type Entry struct {
	// ID identifies the entry within its batch.
	ID string

	// Body is the serialized message payload.
	Body string
}

// Message is one received message.
type Message struct {
	// ReceiptHandle acknowledges the message on Delete.
	ReceiptHandle string

	// Body is the raw message payload.
	Body string
}

// Publisher sends message batches to a queue.
type Publisher interface {
	// SendBatch sends up to MaxBatchSize entries in one request.
	SendBatch(ctx context.Context, entries []Entry) error
}

// Consumer receives and acknowledges messages.
type Consumer interface {
	// Receive returns up to max messages, blocking up to the transport's
	// configured wait time. An empty slice means no messages were available.
	Receive(ctx context.Context, max int32) ([]Message, error)

	// Delete acknowledges a message so it is not redelivered.
	Delete(ctx context.Context, receiptHandle string) error
}

// QueueError wraps transport errors with operation context.
type QueueError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *QueueError) Error() string {
	return fmt.Sprintf("queue %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *QueueError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true for transient transport failures worth retrying:
// throttling and service unavailability.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrThrottled) || errors.Is(err, ErrUnavailable)
}
