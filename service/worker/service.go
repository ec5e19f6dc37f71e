// Package worker evaluates single trials on behalf of a remote dispatcher and
// publishes each score to the completion queue.
package worker

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/scatter/metrics"
	"github.com/viant/scatter/service/invoker"
	"github.com/viant/scatter/service/messaging"
	"github.com/viant/scatter/service/process"
)

// Service runs the heuristic for one request at a time
type Service struct {
	config    Config
	runner    process.Runner
	publisher messaging.Publisher
	metrics   *metrics.Metrics
}

// Evaluate runs the heuristic for request and returns its completion
func (s *Service) Evaluate(ctx context.Context, request *invoker.Request) (*messaging.Completion, error) {
	instance := url.Join(s.config.InstanceURL, fmt.Sprintf("%04d.txt", request.Seed))
	command := fmt.Sprintf("%s %s < %s", s.config.Command, process.ShellQuote(request.Params), process.ShellQuote(url.Path(instance)))
	result, err := s.runner.Run(ctx, command)
	if err != nil {
		return nil, fmt.Errorf("failed to run seed %d: %w", request.Seed, err)
	}
	if !result.Succeeded() {
		return nil, fmt.Errorf("seed %d exited with %d: %s", request.Seed, result.Status, result.Stderr)
	}
	score, err := process.ParseScore(result.Output)
	if err != nil {
		return nil, fmt.Errorf("seed %d: %w", request.Seed, err)
	}
	return &messaging.Completion{CorrelationID: request.CorrelationID, Seed: request.Seed, Score: score / s.config.ScoreScale}, nil
}

// Handle evaluates request and publishes its completion. A failed trial
// publishes nothing.
func (s *Service) Handle(ctx context.Context, request *invoker.Request) {
	fields := logrus.Fields{"seed": request.Seed, "correlationId": request.CorrelationID}
	completion, err := s.Evaluate(ctx, request)
	if err != nil {
		logrus.WithError(err).WithFields(fields).Warn("trial failed")
		s.metrics.ObserveWorkerTrial(metrics.OutcomeFailed)
		return
	}
	if err = s.publisher.Publish(ctx, completion); err != nil {
		logrus.WithError(err).WithFields(fields).Warn("failed to publish completion")
		s.metrics.ObserveWorkerTrial(metrics.OutcomeLost)
		return
	}
	s.metrics.ObserveWorkerTrial(metrics.OutcomeCompleted)
	logrus.WithFields(fields).WithField("score", completion.Score).Debug("trial completed")
}

// WithMetrics records every handled trial in m
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// New creates a worker service
func New(config Config, runner process.Runner, publisher messaging.Publisher) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if publisher == nil {
		return nil, fmt.Errorf("worker requires a completion publisher")
	}
	if runner == nil {
		runner = process.New(config.Process)
	}
	config.InstanceURL = url.Normalize(config.InstanceURL, file.Scheme)
	return &Service{config: config, runner: runner, publisher: publisher}, nil
}
