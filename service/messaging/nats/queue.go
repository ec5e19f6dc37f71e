// Package nats implements the completion queue on a NATS JetStream stream
// with a durable pull consumer. JetStream redelivers a fetched message that
// is not acknowledged within the consumer AckWait, which plays the role of
// the visibility timeout.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/viant/scatter/internal/idgen"
	"github.com/viant/scatter/service/messaging"
)

const (
	// DefaultSubject carries completions
	DefaultSubject = "scatter.completions"
	// DefaultStream stores DefaultSubject
	DefaultStream = "SCATTER"
	// DefaultDurable names the collector pull consumer
	DefaultDurable = "scatter-collector"

	maxFetchWait = 250 * time.Millisecond
)

// Config for NATS JetStream queue
type Config struct {
	URL               string
	Stream            string
	Subject           string
	Durable           string
	VisibilityTimeout time.Duration
}

// DefaultConfig returns a standard configuration for a local NATS server
func DefaultConfig() Config {
	return Config{
		URL:               natsgo.DefaultURL,
		Stream:            DefaultStream,
		Subject:           DefaultSubject,
		Durable:           DefaultDurable,
		VisibilityTimeout: messaging.DefaultVisibilityTimeout,
	}
}

func (c *Config) init() {
	defaults := DefaultConfig()
	if c.URL == "" {
		c.URL = defaults.URL
	}
	if c.Stream == "" {
		c.Stream = defaults.Stream
	}
	if c.Subject == "" {
		c.Subject = defaults.Subject
	}
	if c.Durable == "" {
		c.Durable = defaults.Durable
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = defaults.VisibilityTimeout
	}
}

type subscription interface {
	Fetch(batch int, opts ...natsgo.PullOpt) ([]*natsgo.Msg, error)
}

type publishFunc func(subject string, data []byte) error

type ackFunc func(msg *natsgo.Msg) error

// Queue is a messaging.Queue and messaging.Publisher over JetStream
type Queue struct {
	config   Config
	conn     *natsgo.Conn
	sub      subscription
	publish  publishFunc
	ack      ackFunc
	mu       sync.Mutex
	inflight map[string]*natsgo.Msg
}

// Publish appends a completion to the stream
func (q *Queue) Publish(ctx context.Context, completion *messaging.Completion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if completion == nil {
		return fmt.Errorf("completion was nil")
	}
	data, err := json.Marshal(completion)
	if err != nil {
		return err
	}
	if err = q.publish(q.config.Subject, data); err != nil {
		return fmt.Errorf("failed to publish %v: %w", completion.CorrelationID, err)
	}
	return nil
}

// Poll fetches up to max messages. A fetch that times out is an empty round.
func (q *Queue) Poll(ctx context.Context, max int) ([]*messaging.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if max <= 0 {
		return nil, fmt.Errorf("invalid max messages: %d", max)
	}
	msgs, err := q.sub.Fetch(max, natsgo.MaxWait(maxFetchWait))
	if err != nil {
		if errors.Is(err, natsgo.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch from %v: %w", q.config.Subject, err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	ret := make([]*messaging.Message, 0, len(msgs))
	for _, msg := range msgs {
		completion := messaging.Completion{}
		if err := json.Unmarshal(msg.Data, &completion); err != nil {
			logrus.WithError(err).WithField("subject", msg.Subject).Warn("invalid completion body")
		}
		token := idgen.New()
		q.inflight[token] = msg
		ret = append(ret, &messaging.Message{
			CorrelationID: completion.CorrelationID,
			Score:         completion.Score,
			AckToken:      token,
		})
	}
	return ret, nil
}

// Acknowledge acks every delivered message; unknown tokens and failed acks
// are left out of the result
func (q *Queue) Acknowledge(ctx context.Context, tokens []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	acked := make([]string, 0, len(tokens))
	var lastErr error
	for _, token := range tokens {
		q.mu.Lock()
		msg, ok := q.inflight[token]
		q.mu.Unlock()
		if !ok {
			continue
		}
		if err := q.ack(msg); err != nil {
			lastErr = err
			continue
		}
		q.mu.Lock()
		delete(q.inflight, token)
		q.mu.Unlock()
		acked = append(acked, token)
	}
	if len(acked) == 0 && lastErr != nil {
		return acked, fmt.Errorf("failed to acknowledge: %w", lastErr)
	}
	return acked, nil
}

// Close drains the connection
func (q *Queue) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Drain()
}

// NewQueue connects to config.URL, creates the stream when it is missing and
// binds a durable pull consumer
func NewQueue(ctx context.Context, config Config) (*Queue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	config.init()
	conn, err := natsgo.Connect(config.URL, natsgo.MaxReconnects(-1), natsgo.Name("scatter"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %v: %w", config.URL, err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err = js.StreamInfo(config.Stream); err != nil {
		if !errors.Is(err, natsgo.ErrStreamNotFound) {
			conn.Close()
			return nil, err
		}
		if _, err = js.AddStream(&natsgo.StreamConfig{Name: config.Stream, Subjects: []string{config.Subject}}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create stream %v: %w", config.Stream, err)
		}
	}
	sub, err := js.PullSubscribe(config.Subject, config.Durable, natsgo.AckWait(config.VisibilityTimeout), natsgo.BindStream(config.Stream))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to %v: %w", config.Subject, err)
	}
	ret := newQueue(config, sub, func(subject string, data []byte) error {
		_, err := js.Publish(subject, data)
		return err
	}, func(msg *natsgo.Msg) error {
		return msg.AckSync()
	})
	ret.conn = conn
	return ret, nil
}

func newQueue(config Config, sub subscription, publish publishFunc, ack ackFunc) *Queue {
	config.init()
	return &Queue{
		config:   config,
		sub:      sub,
		publish:  publish,
		ack:      ack,
		inflight: map[string]*natsgo.Msg{},
	}
}

var _ messaging.Queue = (*Queue)(nil)
var _ messaging.Publisher = (*Queue)(nil)
