package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/scatter/internal/clock"
	"github.com/viant/scatter/internal/idgen"
	"github.com/viant/scatter/service/messaging"
)

// envelope is the stored form of a completion
type envelope struct {
	ID         string               `json:"id"`
	Data       messaging.Completion `json:"data"`
	CreatedAt  time.Time            `json:"createdAt"`
	Deliveries int                  `json:"deliveries"`
}

// QueueConfig holds configuration for filesystem queue
type QueueConfig struct {
	BasePath          string        // Base URL for queue files
	VisibilityTimeout time.Duration // How long a polled message stays hidden
}

// DefaultConfig returns a default queue configuration
func DefaultConfig() QueueConfig {
	return QueueConfig{
		BasePath:          "/tmp/scatter/queue",
		VisibilityTimeout: messaging.DefaultVisibilityTimeout,
	}
}

// Queue implements an at-least-once completion queue on top of any afs
// storage. Published completions live under pending/; a poll moves them
// under inflight/ named by their ack token, and an ack deletes that file.
// Inflight files older than the visibility timeout go back to pending/.
type Queue struct {
	fs          afs.Service
	config      QueueConfig
	pendingDir  string
	inflightDir string
	mu          sync.Mutex
}

// NewQueue creates a new filesystem-based queue
func NewQueue(ctx context.Context, fs afs.Service, config QueueConfig) (*Queue, error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if config.VisibilityTimeout <= 0 {
		config.VisibilityTimeout = messaging.DefaultVisibilityTimeout
	}
	config.BasePath = url.Normalize(config.BasePath, file.Scheme)
	q := &Queue{
		fs:          fs,
		config:      config,
		pendingDir:  url.Join(config.BasePath, "pending"),
		inflightDir: url.Join(config.BasePath, "inflight"),
	}
	for _, dir := range []string{q.pendingDir, q.inflightDir} {
		exists, err := fs.Exists(ctx, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to check directory %s: %w", dir, err)
		}
		if !exists {
			if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}
	return q, nil
}

// Publish adds a completion to the queue
func (q *Queue) Publish(ctx context.Context, completion *messaging.Completion) error {
	if completion == nil {
		return fmt.Errorf("completion was nil")
	}
	message := &envelope{ID: idgen.New(), Data: *completion, CreatedAt: clock.Now()}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return q.publish(ctx, filename(message.ID), data)
}

// publish writes data under a temporary name and then moves it into pending/
// so that a concurrent poll never reads a partial file
func (q *Queue) publish(ctx context.Context, name string, data []byte) error {
	staged := url.Join(q.pendingDir, name+".tmp")
	if err := q.upload(ctx, staged, data); err != nil {
		return err
	}
	return q.fs.Move(ctx, staged, url.Join(q.pendingDir, name))
}

// Poll delivers up to max pending messages, oldest first
func (q *Queue) Poll(ctx context.Context, max int) ([]*messaging.Message, error) {
	if max <= 0 {
		return nil, fmt.Errorf("invalid max messages: %d", max)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.releaseExpired(ctx); err != nil {
		return nil, err
	}
	objects, err := q.list(ctx, q.pendingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}
	var ret []*messaging.Message
	for _, obj := range objects {
		if len(ret) == max {
			break
		}
		data, err := q.fs.DownloadWithURL(ctx, obj.URL())
		if err != nil {
			return ret, fmt.Errorf("failed to read message %s: %w", obj.URL(), err)
		}
		token := idgen.New()
		message := &messaging.Message{AckToken: token}
		stored := &envelope{}
		if err := json.Unmarshal(data, stored); err == nil {
			// unreadable bodies are still delivered, with no correlation id
			message.CorrelationID = stored.Data.CorrelationID
			message.Score = stored.Data.Score
			stored.Deliveries++
			if updated, err := json.Marshal(stored); err == nil {
				data = updated
			}
		}
		// upload then delete so the inflight copy carries a fresh mod time
		if err := q.upload(ctx, url.Join(q.inflightDir, filename(token)), data); err != nil {
			return ret, fmt.Errorf("failed to move message to inflight directory: %w", err)
		}
		if err := q.fs.Delete(ctx, obj.URL()); err != nil {
			return ret, fmt.Errorf("failed to delete message from pending directory: %w", err)
		}
		ret = append(ret, message)
	}
	return ret, nil
}

// Acknowledge deletes inflight messages and returns the tokens it deleted
func (q *Queue) Acknowledge(ctx context.Context, tokens []string) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	acked := make([]string, 0, len(tokens))
	var lastErr error
	for _, token := range tokens {
		if token == "" || strings.ContainsAny(token, "/\\") {
			continue
		}
		URL := url.Join(q.inflightDir, filename(token))
		exists, err := q.fs.Exists(ctx, URL)
		if err != nil {
			lastErr = err
			continue
		}
		if !exists {
			continue
		}
		if err := q.fs.Delete(ctx, URL); err != nil {
			lastErr = err
			continue
		}
		acked = append(acked, token)
	}
	if len(acked) == 0 && lastErr != nil {
		return acked, fmt.Errorf("failed to acknowledge messages: %w", lastErr)
	}
	return acked, nil
}

// Size returns the number of pending and inflight messages
func (q *Queue) Size(ctx context.Context) (int, error) {
	total := 0
	for _, dir := range []string{q.pendingDir, q.inflightDir} {
		objects, err := q.list(ctx, dir)
		if err != nil {
			return 0, err
		}
		total += len(objects)
	}
	return total, nil
}

// releaseExpired moves inflight messages past their visibility timeout back to pending
func (q *Queue) releaseExpired(ctx context.Context) error {
	objects, err := q.list(ctx, q.inflightDir)
	if err != nil {
		return fmt.Errorf("failed to list inflight messages: %w", err)
	}
	deadline := clock.Now().Add(-q.config.VisibilityTimeout)
	for _, obj := range objects {
		if obj.ModTime().After(deadline) {
			continue
		}
		data, err := q.fs.DownloadWithURL(ctx, obj.URL())
		if err != nil {
			return fmt.Errorf("failed to read message %s: %w", obj.URL(), err)
		}
		name := obj.Name()
		stored := &envelope{}
		if err := json.Unmarshal(data, stored); err == nil && stored.ID != "" {
			name = filename(stored.ID)
		}
		if err := q.publish(ctx, name, data); err != nil {
			return fmt.Errorf("failed to release message %s: %w", obj.URL(), err)
		}
		if err := q.fs.Delete(ctx, obj.URL()); err != nil {
			return fmt.Errorf("failed to delete released message %s: %w", obj.URL(), err)
		}
	}
	return nil
}

// list returns json files under dir ordered by modification time
func (q *Queue) list(ctx context.Context, dir string) ([]storage.Object, error) {
	objects, err := q.fs.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	var files []storage.Object
	for _, obj := range objects {
		if !obj.IsDir() && strings.HasSuffix(obj.Name(), ".json") {
			files = append(files, obj)
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].ModTime().Equal(files[j].ModTime()) {
			return files[i].Name() < files[j].Name()
		}
		return files[i].ModTime().Before(files[j].ModTime())
	})
	return files, nil
}

func filename(id string) string {
	return fmt.Sprintf("%s.json", id)
}

func (q *Queue) upload(ctx context.Context, URL string, data []byte) error {
	return q.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewBuffer(data))
}

var _ messaging.Queue = (*Queue)(nil)
var _ messaging.Publisher = (*Queue)(nil)
