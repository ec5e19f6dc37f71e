package scatter

import (
	"github.com/sirupsen/logrus"
	"github.com/viant/afs"
	"github.com/viant/scatter/metrics"
	"github.com/viant/scatter/progress"
	"github.com/viant/scatter/service/backend"
	"github.com/viant/scatter/service/invoker"
	"github.com/viant/scatter/service/messaging"
	"github.com/viant/scatter/service/process"
	"github.com/viant/scatter/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures a Service
type Option func(s *Service)

// WithInvoker sets the remote invoker, replacing the configured HTTP invoker
func WithInvoker(inv invoker.Invoker) Option {
	return func(s *Service) {
		s.invoker = inv
	}
}

// WithQueue sets the completion queue, replacing the configured one
func WithQueue(queue messaging.Queue) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithRunner sets the process runner used by the local backend
func WithRunner(runner process.Runner) Option {
	return func(s *Service) {
		s.runner = runner
	}
}

// WithFS sets the file system used for config, artifacts and the fs queue
func WithFS(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithBackend sets a custom backend; the backend section of the config is
// then ignored
func WithBackend(b backend.Backend) Option {
	return func(s *Service) {
		s.backend = b
	}
}

// WithProgress registers a callback receiving counter snapshots
func WithProgress(onChange func(progress.Progress)) Option {
	return func(s *Service) {
		s.onProgress = onChange
	}
}

// WithMetrics records sampling and evaluation results in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracing exports spans to outputFile, or stdout when it is empty. The
// first tracing option or config to initialise wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		if err := tracing.Init(serviceName, serviceVersion, outputFile); err != nil {
			logrus.WithError(err).Warn("tracing disabled")
		}
	}
}

// WithTracingExporter exports spans to exporter
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		if err := tracing.InitWithExporter(serviceName, serviceVersion, exporter); err != nil {
			logrus.WithError(err).Warn("tracing disabled")
		}
	}
}
