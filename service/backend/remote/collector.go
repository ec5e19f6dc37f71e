package remote

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/viant/scatter/internal/clock"
	"github.com/viant/scatter/model/trial"
	"github.com/viant/scatter/progress"
	"github.com/viant/scatter/runtime/correlation"
	"github.com/viant/scatter/service/messaging"
)

// State is the collection episode state
type State int

const (
	// Collecting means ids are pending and time remains
	Collecting State = iota
	// Draining means every pending id was matched
	Draining
	// TimedOut means the time budget ran out first
	TimedOut
	// Cancelled means the caller's context ended the episode
	Cancelled
)

func (s State) String() string {
	switch s {
	case Collecting:
		return "collecting"
	case Draining:
		return "draining"
	case TimedOut:
		return "timedOut"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Stats summarises one collection episode
type Stats struct {
	State      State
	Rounds     int
	Received   int
	Matched    int
	Duplicates int
	Acked      int
	Unacked    int
	Elapsed    time.Duration
}

// Collector gathers scores for one pending set from a completion queue. It is
// single use and not safe for concurrent use.
type Collector struct {
	config      Config
	queue       messaging.Queue
	pending     *correlation.PendingSet
	scores      trial.Scores
	outstanding []string
	stats       Stats
}

// Stats returns episode statistics
func (c *Collector) Stats() Stats {
	return c.stats
}

// Collect polls until every pending id is matched or the timeout elapses.
// Both outcomes return the accumulated scores without error. A cancelled ctx
// returns the accumulated scores with ctx.Err().
func (c *Collector) Collect(ctx context.Context) (trial.Scores, error) {
	started := clock.Now()
	defer func() { c.stats.Elapsed = clock.Since(started) }()
	for c.stats.State == Collecting {
		if c.pending.Len() == 0 {
			c.stats.State = Draining
			break
		}
		if ctx.Err() != nil {
			c.stats.State = Cancelled
			break
		}
		received := c.round(ctx)
		if received == 0 && c.pending.Len() > 0 {
			backoff := c.config.Backoff
			if remaining := c.config.Timeout - clock.Since(started); remaining < backoff {
				backoff = remaining
			}
			clock.Sleep(ctx, backoff)
		}
		if clock.Since(started) >= c.config.Timeout {
			c.stats.State = TimedOut
		}
	}
	if len(c.outstanding) > 0 && ctx.Err() == nil {
		c.acknowledge(ctx)
	}
	c.stats.Unacked = len(c.outstanding)
	logrus.WithFields(logrus.Fields{
		"state":      c.stats.State.String(),
		"rounds":     c.stats.Rounds,
		"matched":    c.stats.Matched,
		"duplicates": c.stats.Duplicates,
		"missing":    c.pending.Len(),
		"unacked":    c.stats.Unacked,
	}).Info("collection finished")
	if c.stats.State == Cancelled {
		return c.scores, ctx.Err()
	}
	return c.scores, nil
}

// round polls once, matches what arrived and acknowledges everything
// outstanding. It returns the number of messages received.
func (c *Collector) round(ctx context.Context) int {
	c.stats.Rounds++
	messages, err := c.queue.Poll(ctx, c.config.BatchSize)
	if err != nil {
		// a failed poll may still have delivered messages; they are matched and acked below
		logrus.WithError(err).WithField("delivered", len(messages)).Warn("failed to poll completion queue")
	}
	for _, message := range messages {
		if message == nil {
			continue
		}
		c.stats.Received++
		if message.AckToken != "" {
			c.outstanding = append(c.outstanding, message.AckToken)
		}
		seed, ok := c.pending.Take(message.CorrelationID)
		if !ok {
			c.stats.Duplicates++
			progress.UpdateCtx(ctx, progress.Delta{Duplicates: 1})
			logrus.WithField("correlationId", message.CorrelationID).Debug("discarding duplicate or stray message")
			continue
		}
		c.scores[seed] = message.Score
		c.stats.Matched++
		progress.UpdateCtx(ctx, progress.Delta{Completed: 1, Pending: -1})
	}
	if len(c.outstanding) > 0 {
		c.acknowledge(ctx)
	}
	logrus.WithFields(logrus.Fields{
		"round":    c.stats.Rounds,
		"received": len(messages),
		"pending":  c.pending.Len(),
		"unacked":  len(c.outstanding),
	}).Debug("collection round")
	return len(messages)
}

// acknowledge submits outstanding tokens in chunks of at most BatchSize and
// keeps only the ones not confirmed.
func (c *Collector) acknowledge(ctx context.Context) {
	var failed []string
	for start := 0; start < len(c.outstanding); start += c.config.BatchSize {
		end := start + c.config.BatchSize
		if end > len(c.outstanding) {
			end = len(c.outstanding)
		}
		chunk := c.outstanding[start:end]
		acked, err := c.queue.Acknowledge(ctx, chunk)
		if err != nil {
			logrus.WithError(err).WithField("tokens", len(chunk)).Warn("failed to acknowledge messages")
		}
		confirmed := make(map[string]bool, len(acked))
		for _, token := range acked {
			confirmed[token] = true
		}
		count := 0
		for _, token := range chunk {
			if confirmed[token] {
				count++
				continue
			}
			failed = append(failed, token)
		}
		c.stats.Acked += count
		progress.UpdateCtx(ctx, progress.Delta{Acknowledged: count})
	}
	c.outstanding = failed
}

// NewCollector creates a collector for pending
func NewCollector(config Config, queue messaging.Queue, pending *correlation.PendingSet) *Collector {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Collector{
		config:  config,
		queue:   queue,
		pending: pending,
		scores:  make(trial.Scores, pending.Len()),
	}
}
