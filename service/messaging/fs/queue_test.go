package fs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/scatter/internal/clock"
	"github.com/viant/scatter/service/messaging"
)

func newTestQueue(t *testing.T) (*Queue, afs.Service) {
	tempDir, err := os.MkdirTemp("", "queue-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })
	fs := afs.New()
	queue, err := NewQueue(context.Background(), fs, QueueConfig{BasePath: tempDir, VisibilityTimeout: time.Minute})
	require.NoError(t, err)
	return queue, fs
}

func TestQueue(t *testing.T) {
	ctx := context.Background()
	queue, fs := newTestQueue(t)

	for _, dir := range []string{queue.pendingDir, queue.inflightDir} {
		exists, err := fs.Exists(ctx, dir)
		assert.NoError(t, err)
		assert.True(t, exists, dir)
	}

	testCases := []messaging.Completion{
		{CorrelationID: "id-1", Seed: 1, Score: 0.25},
		{CorrelationID: "id-2", Seed: 2, Score: 0.5},
		{CorrelationID: "id-3", Seed: 3, Score: 0.75},
	}
	for i := range testCases {
		require.NoError(t, queue.Publish(ctx, &testCases[i]))
	}
	size, err := queue.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, size)

	messages, err := queue.Poll(ctx, 10)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	received := map[string]float64{}
	var tokens []string
	for _, message := range messages {
		received[message.CorrelationID] = message.Score
		tokens = append(tokens, message.AckToken)
	}
	assert.Equal(t, map[string]float64{"id-1": 0.25, "id-2": 0.5, "id-3": 0.75}, received)

	again, err := queue.Poll(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	acked, err := queue.Acknowledge(ctx, append(tokens, "missing", "../escape"))
	require.NoError(t, err)
	assert.ElementsMatch(t, tokens, acked)

	size, err = queue.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestQueue_Redelivery(t *testing.T) {
	ctx := context.Background()
	queue, _ := newTestQueue(t)
	require.NoError(t, queue.Publish(ctx, &messaging.Completion{CorrelationID: "late", Score: 0.1}))

	first, err := queue.Poll(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	original := clock.NowFunc
	clock.NowFunc = func() time.Time { return time.Now().Add(2 * time.Minute) }
	defer func() { clock.NowFunc = original }()

	second, err := queue.Poll(ctx, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "late", second[0].CorrelationID)
	assert.NotEqual(t, first[0].AckToken, second[0].AckToken)

	acked, err := queue.Acknowledge(ctx, []string{first[0].AckToken})
	require.NoError(t, err)
	assert.Empty(t, acked)

	acked, err = queue.Acknowledge(ctx, []string{second[0].AckToken})
	require.NoError(t, err)
	assert.Equal(t, []string{second[0].AckToken}, acked)
}

func TestQueue_InvalidBody(t *testing.T) {
	ctx := context.Background()
	queue, fs := newTestQueue(t)
	err := fs.Upload(ctx, url.Join(queue.pendingDir, "garbage.json"), file.DefaultFileOsMode, bytes.NewBufferString("{not json"))
	require.NoError(t, err)

	messages, err := queue.Poll(ctx, 5)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Empty(t, messages[0].CorrelationID)

	acked, err := queue.Acknowledge(ctx, []string{messages[0].AckToken})
	require.NoError(t, err)
	assert.Len(t, acked, 1)
}

func TestNewQueue_EmptyBasePath(t *testing.T) {
	_, err := NewQueue(context.Background(), afs.New(), QueueConfig{})
	assert.Error(t, err)
}

// flakyFS fails existence checks while down is set
type flakyFS struct {
	afs.Service
	down bool
}

func (f *flakyFS) Exists(ctx context.Context, URL string, options ...storage.Option) (bool, error) {
	if f.down {
		return false, errors.New("storage unreachable")
	}
	return f.Service.Exists(ctx, URL, options...)
}

func TestQueue_StorageErrors(t *testing.T) {
	ctx := context.Background()
	tempDir, err := os.MkdirTemp("", "queue-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	fs := &flakyFS{Service: afs.New(), down: true}
	_, err = NewQueue(ctx, fs, QueueConfig{BasePath: tempDir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage unreachable")

	fs.down = false
	queue, err := NewQueue(ctx, fs, QueueConfig{BasePath: tempDir, VisibilityTimeout: time.Minute})
	require.NoError(t, err)
	require.NoError(t, queue.Publish(ctx, &messaging.Completion{CorrelationID: "id-1", Score: 0.5}))
	messages, err := queue.Poll(ctx, 1)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	fs.down = true
	acked, err := queue.Acknowledge(ctx, []string{messages[0].AckToken})
	require.Error(t, err)
	assert.Empty(t, acked)

	fs.down = false
	acked, err = queue.Acknowledge(ctx, []string{messages[0].AckToken})
	require.NoError(t, err)
	assert.Equal(t, []string{messages[0].AckToken}, acked)
}
