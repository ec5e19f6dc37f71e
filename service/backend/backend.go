// Package backend defines how a trial set is executed: dispatched to workers
// and collected back as a per-seed score mapping.
package backend

import (
	"context"
	"fmt"

	"github.com/viant/scatter/model/trial"
	"github.com/viant/scatter/tracing"
)

// Pending is whatever a backend dispatched and still owes a result for
type Pending interface {
	Len() int
}

// Backend executes trials. Collect must only be given the Pending returned by
// the same backend's Dispatch.
type Backend interface {
	Name() string
	Dispatch(ctx context.Context, set *trial.Set) (Pending, error)
	Collect(ctx context.Context, pending Pending) (trial.Scores, error)
}

// Kind names a backend implementation
type Kind string

const (
	KindRemote Kind = "remote"
	KindLocal  Kind = "local"
)

// Sample dispatches set on b and collects its scores. A partial mapping may be
// returned together with an error.
func Sample(ctx context.Context, b Backend, set *trial.Set) (trial.Scores, error) {
	if set.Len() == 0 {
		return trial.Scores{}, nil
	}
	dispatchCtx, span := tracing.StartSpan(ctx, "backend.Dispatch", tracing.KindProducer)
	span.WithString("backend", b.Name()).WithInt("trials", set.Len())
	pending, err := b.Dispatch(dispatchCtx, set)
	tracing.EndSpan(span, err)
	if err != nil && pending == nil {
		return nil, fmt.Errorf("failed to dispatch %d trials: %w", set.Len(), err)
	}
	collectCtx, span := tracing.StartSpan(ctx, "backend.Collect", tracing.KindConsumer)
	span.WithInt("pending", pending.Len())
	scores, collectErr := b.Collect(collectCtx, pending)
	span.WithInt("scores", len(scores))
	tracing.EndSpan(span, collectErr)
	if err == nil {
		err = collectErr
	}
	return scores, err
}
