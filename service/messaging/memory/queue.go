package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/viant/scatter/internal/clock"
	"github.com/viant/scatter/internal/idgen"
	"github.com/viant/scatter/service/messaging"
)

// Config for memory queue implementation
type Config struct {
	VisibilityTimeout time.Duration
}

// DefaultConfig returns a standard configuration for memory queue
func DefaultConfig() Config {
	return Config{VisibilityTimeout: messaging.DefaultVisibilityTimeout}
}

type entry struct {
	completion     messaging.Completion
	invisibleUntil time.Time
	deliveries     int
	tokens         []string
}

// Queue implements an in-memory, at-least-once messaging.Queue. A polled
// message that is not acknowledged within the visibility timeout is
// delivered again under a new token.
type Queue struct {
	config   Config
	mu       sync.Mutex
	entries  []*entry
	inflight map[string]*entry
}

// NewQueue creates a new in-memory queue
func NewQueue(config Config) *Queue {
	if config.VisibilityTimeout <= 0 {
		config.VisibilityTimeout = DefaultConfig().VisibilityTimeout
	}
	return &Queue{config: config, inflight: map[string]*entry{}}
}

// Publish appends a completion
func (q *Queue) Publish(ctx context.Context, completion *messaging.Completion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if completion == nil {
		return fmt.Errorf("completion was nil")
	}
	q.mu.Lock()
	q.entries = append(q.entries, &entry{completion: *completion})
	q.mu.Unlock()
	return nil
}

// Poll delivers up to max visible messages in publish order
func (q *Queue) Poll(ctx context.Context, max int) ([]*messaging.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if max <= 0 {
		return nil, fmt.Errorf("invalid max messages: %d", max)
	}
	now := clock.Now()
	q.mu.Lock()
	defer q.mu.Unlock()
	var ret []*messaging.Message
	for _, e := range q.entries {
		if len(ret) == max {
			break
		}
		if now.Before(e.invisibleUntil) {
			continue
		}
		token := idgen.New()
		e.invisibleUntil = now.Add(q.config.VisibilityTimeout)
		e.deliveries++
		e.tokens = append(e.tokens, token)
		q.inflight[token] = e
		ret = append(ret, &messaging.Message{
			CorrelationID: e.completion.CorrelationID,
			Score:         e.completion.Score,
			AckToken:      token,
		})
	}
	return ret, nil
}

// Acknowledge removes the messages delivered under tokens. Any token issued
// for a message, including one from an earlier delivery, acknowledges it.
func (q *Queue) Acknowledge(ctx context.Context, tokens []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	acked := make([]string, 0, len(tokens))
	for _, token := range tokens {
		e, ok := q.inflight[token]
		if !ok {
			continue
		}
		q.remove(e)
		acked = append(acked, token)
	}
	return acked, nil
}

func (q *Queue) remove(e *entry) {
	for _, token := range e.tokens {
		delete(q.inflight, token)
	}
	for i, candidate := range q.entries {
		if candidate == e {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// Size returns the number of messages not yet acknowledged
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Deliveries returns how many times messages for correlationID were handed out
func (q *Queue) Deliveries(correlationID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	total := 0
	for _, e := range q.entries {
		if e.completion.CorrelationID == correlationID {
			total += e.deliveries
		}
	}
	return total
}

var _ messaging.Queue = (*Queue)(nil)
var _ messaging.Publisher = (*Queue)(nil)
