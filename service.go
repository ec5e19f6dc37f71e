package scatter

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/viant/afs"
	"github.com/viant/scatter/internal/clock"
	"github.com/viant/scatter/internal/idgen"
	"github.com/viant/scatter/metrics"
	"github.com/viant/scatter/model/trial"
	"github.com/viant/scatter/progress"
	"github.com/viant/scatter/service/aggregate"
	"github.com/viant/scatter/service/backend"
	"github.com/viant/scatter/service/backend/local"
	"github.com/viant/scatter/service/backend/remote"
	"github.com/viant/scatter/service/invoker"
	httpinvoker "github.com/viant/scatter/service/invoker/http"
	"github.com/viant/scatter/service/messaging"
	fsqueue "github.com/viant/scatter/service/messaging/fs"
	"github.com/viant/scatter/service/messaging/memory"
	natsqueue "github.com/viant/scatter/service/messaging/nats"
	"github.com/viant/scatter/service/process"
	"github.com/viant/scatter/tracing"
)

// Version is reported to tracing
const Version = "0.1.0"

// Service evaluates parameter blobs by sampling trials on the configured
// backend
type Service struct {
	config     *Config
	fs         afs.Service
	invoker    invoker.Invoker
	queue      messaging.Queue
	runner     process.Runner
	backend    backend.Backend
	onProgress func(progress.Progress)
	metrics    *metrics.Metrics
}

// Evaluate samples params on seeds (the configured seeds when empty) and
// returns 1 - mean score; lower is better. It fails with
// aggregate.ErrEmptyResult when no trial produced a score.
func (s *Service) Evaluate(ctx context.Context, params []byte, seeds []int) (float64, error) {
	ctx, span := tracing.StartSpan(ctx, "scatter.Evaluate", tracing.KindInternal)
	scores, err := s.Sample(ctx, params, seeds)
	if err != nil {
		s.metrics.ObserveEvaluation(s.backend.Name(), 0, err)
		tracing.EndSpan(span, err)
		return 0, err
	}
	fitness, err := aggregate.Reduce(scores)
	s.metrics.ObserveEvaluation(s.backend.Name(), fitness, err)
	span.WithInt("scores", len(scores)).WithFloat("fitness", fitness)
	tracing.EndSpan(span, err)
	return fitness, err
}

// Sample runs one trial per distinct seed and returns the scores that
// arrived. Missing seeds are lost trials. On cancellation the partial scores
// are returned with the context error.
func (s *Service) Sample(ctx context.Context, params []byte, seeds []int) (trial.Scores, error) {
	if len(seeds) == 0 {
		seeds = s.config.SeedList()
	}
	set := trial.NewSet(params, seeds)
	started := clock.Now()
	ctx, tracker := progress.WithNewTracker(ctx, idgen.New(), s.backend.Name(), s.onProgress)
	scores, err := backend.Sample(ctx, s.backend, set)
	snapshot := tracker.Snapshot()
	s.metrics.ObserveSample(snapshot, clock.Since(started))
	logrus.WithFields(logrus.Fields{
		"evaluation": snapshot.EvaluationID,
		"backend":    snapshot.Backend,
		"trials":     set.Len(),
		"scores":     len(scores),
		"failed":     snapshot.Failed,
		"lost":       snapshot.Lost(),
		"duplicates": snapshot.Duplicates,
	}).Info("sampling finished")
	return scores, err
}

// Backend returns the active backend
func (s *Service) Backend() backend.Backend {
	return s.backend
}

// Config returns the service configuration
func (s *Service) Config() *Config {
	return s.config
}

func (s *Service) init(ctx context.Context, options []Option) error {
	for _, option := range options {
		option(s)
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	if s.config.Tracing.Enabled {
		if err := tracing.Init("scatter", Version, s.config.Tracing.Output); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
	}
	if s.backend != nil {
		return nil
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	var err error
	switch s.config.Backend {
	case backend.KindLocal:
		s.backend, err = local.New(s.config.Local, s.runner, s.fs)
	default:
		if s.invoker == nil {
			if s.invoker, err = httpinvoker.New(s.config.Remote.Invoker, nil); err != nil {
				return err
			}
		}
		if s.queue == nil {
			if s.queue, err = NewQueue(ctx, s.config.Remote.Queue, s.fs); err != nil {
				return err
			}
		}
		s.backend, err = remote.New(s.config.Remote.Config, s.invoker, s.queue)
	}
	return err
}

// CompletionQueue is a queue that both workers and the collector can use
type CompletionQueue interface {
	messaging.Queue
	messaging.Publisher
}

// NewQueue creates the completion queue described by config
func NewQueue(ctx context.Context, config messaging.Config, fs afs.Service) (CompletionQueue, error) {
	switch config.Vendor {
	case messaging.VendorMemory:
		return memory.NewQueue(memory.Config{VisibilityTimeout: config.VisibilityTimeout}), nil
	case messaging.VendorNATS:
		return natsqueue.NewQueue(ctx, natsqueue.Config{
			URL:               config.URL,
			Stream:            config.Stream,
			Subject:           config.Subject,
			VisibilityTimeout: config.VisibilityTimeout,
		})
	case messaging.VendorFS, "":
		if fs == nil {
			fs = afs.New()
		}
		return fsqueue.NewQueue(ctx, fs, fsqueue.QueueConfig{
			BasePath:          config.URL,
			VisibilityTimeout: config.VisibilityTimeout,
		})
	}
	return nil, fmt.Errorf("unsupported queue vendor: %q", config.Vendor)
}

// New creates a Service; a nil config means DefaultConfig
func New(ctx context.Context, config *Config, options ...Option) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	ret := &Service{config: config}
	if err := ret.init(ctx, options); err != nil {
		return nil, err
	}
	return ret, nil
}
