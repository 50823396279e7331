package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPermanent marks a processing failure that cannot succeed on redelivery
// (malformed payload, unknown event kind). The bus diverts such messages to
// the dead-letter sink immediately instead of redelivering them.
var ErrPermanent = errors.New("permanent failure")

// Permanent wraps err so the bus treats it as non-retryable.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// DeadLetter is the record handed to the dead-letter sink when a message
// exhausts its receive budget or fails permanently.
type DeadLetter struct {
	Topic        string
	MessageID    string
	Payload      []byte
	Metadata     map[string]string
	ReceiveCount int
	Reason       string
}

// DeadLetterer receives messages the bus will not redeliver again.
// Divert must be durable: returning an error keeps the message on the queue.
type DeadLetterer interface {
	Divert(ctx context.Context, dl DeadLetter) error
}

// ReceiveCounter tracks failed receives per message id across worker
// instances. The Redis-backed implementation lives in pkg/cache.
type ReceiveCounter interface {
	Incr(ctx context.Context, messageID string) (int, error)
	Forget(ctx context.Context, messageID string) error
}

// MemoryReceiveCounter is an in-process ReceiveCounter used in tests and as
// the fallback when no shared counter is wired. Counts are lost on restart,
// which only lengthens a message's retry budget, never shortens it.
type MemoryReceiveCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryReceiveCounter returns an empty in-process counter.
func NewMemoryReceiveCounter() *MemoryReceiveCounter {
	return &MemoryReceiveCounter{counts: make(map[string]int)}
}

// Incr increments and returns the count for the message id.
func (c *MemoryReceiveCounter) Incr(_ context.Context, messageID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[messageID]++
	return c.counts[messageID], nil
}

// Forget drops the count for the message id.
func (c *MemoryReceiveCounter) Forget(_ context.Context, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, messageID)
	return nil
}
