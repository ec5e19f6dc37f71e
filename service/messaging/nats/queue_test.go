package nats

import (
	"context"
	"errors"
	"sync"
	"testing"

	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/scatter/service/messaging"
)

// fakeStream redelivers every message until it is acked
type fakeStream struct {
	mu       sync.Mutex
	messages []*natsgo.Msg
	acked    map[*natsgo.Msg]bool
	fetchErr error
	ackErr   error
}

func (f *fakeStream) publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, &natsgo.Msg{Subject: subject, Data: data})
	return nil
}

func (f *fakeStream) Fetch(batch int, opts ...natsgo.PullOpt) ([]*natsgo.Msg, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var ret []*natsgo.Msg
	for _, msg := range f.messages {
		if len(ret) == batch {
			break
		}
		if !f.acked[msg] {
			ret = append(ret, msg)
		}
	}
	if len(ret) == 0 {
		return nil, natsgo.ErrTimeout
	}
	return ret, nil
}

func (f *fakeStream) ack(msg *natsgo.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acked[msg] = true
	return nil
}

func newTestQueue() (*Queue, *fakeStream) {
	stream := &fakeStream{acked: map[*natsgo.Msg]bool{}}
	return newQueue(Config{}, stream, stream.publish, stream.ack), stream
}

func TestQueue_PollAndAcknowledge(t *testing.T) {
	ctx := context.Background()
	queue, stream := newTestQueue()
	require.NoError(t, queue.Publish(ctx, &messaging.Completion{CorrelationID: "a", Seed: 1, Score: 0.25}))
	require.NoError(t, queue.Publish(ctx, &messaging.Completion{CorrelationID: "b", Seed: 2, Score: 0.5}))
	assert.Equal(t, DefaultSubject, stream.messages[0].Subject)

	messages, err := queue.Poll(ctx, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "a", messages[0].CorrelationID)
	assert.Equal(t, 0.5, messages[1].Score)

	acked, err := queue.Acknowledge(ctx, []string{messages[0].AckToken, "unknown"})
	require.NoError(t, err)
	assert.Equal(t, []string{messages[0].AckToken}, acked)

	// b is delivered again under a new token
	again, err := queue.Poll(ctx, 10)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "b", again[0].CorrelationID)
	assert.NotEqual(t, messages[1].AckToken, again[0].AckToken)
}

func TestQueue_PollTimeoutIsEmpty(t *testing.T) {
	queue, _ := newTestQueue()
	messages, err := queue.Poll(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestQueue_PollErrors(t *testing.T) {
	queue, stream := newTestQueue()
	_, err := queue.Poll(context.Background(), 0)
	assert.Error(t, err)

	stream.fetchErr = errors.New("connection closed")
	_, err = queue.Poll(context.Background(), 5)
	assert.Error(t, err)
}

func TestQueue_InvalidBody(t *testing.T) {
	queue, stream := newTestQueue()
	require.NoError(t, stream.publish(DefaultSubject, []byte("not json")))
	messages, err := queue.Poll(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Empty(t, messages[0].CorrelationID)
	assert.NotEmpty(t, messages[0].AckToken)
}

func TestQueue_AcknowledgeFailure(t *testing.T) {
	ctx := context.Background()
	queue, stream := newTestQueue()
	require.NoError(t, queue.Publish(ctx, &messaging.Completion{CorrelationID: "a"}))
	messages, err := queue.Poll(ctx, 1)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	stream.ackErr = errors.New("no responders")
	acked, err := queue.Acknowledge(ctx, []string{messages[0].AckToken})
	assert.Error(t, err)
	assert.Empty(t, acked)

	// the token stays valid for a retry
	stream.ackErr = nil
	acked, err = queue.Acknowledge(ctx, []string{messages[0].AckToken})
	require.NoError(t, err)
	assert.Equal(t, []string{messages[0].AckToken}, acked)
}

func TestConfig_Defaults(t *testing.T) {
	config := Config{Subject: "custom"}
	config.init()
	assert.Equal(t, natsgo.DefaultURL, config.URL)
	assert.Equal(t, "custom", config.Subject)
	assert.Equal(t, DefaultStream, config.Stream)
	assert.Equal(t, messaging.DefaultVisibilityTimeout, config.VisibilityTimeout)
}
