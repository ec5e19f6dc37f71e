// Package remote executes trials on a fire-and-forget worker fleet and
// gathers their scores from an at-least-once completion queue.
package remote

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/viant/scatter/internal/clock"
	"github.com/viant/scatter/model/trial"
	"github.com/viant/scatter/progress"
	"github.com/viant/scatter/runtime/correlation"
	"github.com/viant/scatter/service/backend"
	"github.com/viant/scatter/service/invoker"
	"github.com/viant/scatter/service/messaging"
)

// Backend dispatches through an invoker and collects from a queue
type Backend struct {
	config  Config
	invoker invoker.Invoker
	queue   messaging.Queue
	// last holds statistics of the most recent collection
	last Stats
}

// Name returns backend name
func (b *Backend) Name() string {
	return string(backend.KindRemote)
}

// Dispatch invokes one worker per trial. Trials whose invocation is rejected
// are logged and left out of the returned pending set.
func (b *Backend) Dispatch(ctx context.Context, set *trial.Set) (backend.Pending, error) {
	pending := correlation.NewPendingSet(set.Len())
	for _, t := range set.Trials {
		if err := ctx.Err(); err != nil {
			return pending, err
		}
		request := &invoker.Request{CorrelationID: t.CorrelationID, Seed: t.Seed, Params: string(t.Params)}
		if err := b.invoker.Invoke(ctx, request); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"seed": t.Seed, "correlationId": t.CorrelationID}).Warn("failed to invoke worker")
			progress.UpdateCtx(ctx, progress.Delta{Failed: 1})
			continue
		}
		if err := pending.Add(t.CorrelationID, t.Seed); err != nil {
			return pending, err
		}
		progress.UpdateCtx(ctx, progress.Delta{Dispatched: 1, Pending: 1})
	}
	logrus.WithFields(logrus.Fields{"trials": set.Len(), "dispatched": pending.Len()}).Info("dispatched trials")
	if pending.Len() > 0 && b.config.SettleDelay > 0 {
		if !clock.Sleep(ctx, b.config.SettleDelay) {
			return pending, ctx.Err()
		}
	}
	return pending, nil
}

// Collect gathers scores for pending, which must come from Dispatch
func (b *Backend) Collect(ctx context.Context, pending backend.Pending) (trial.Scores, error) {
	set, ok := pending.(*correlation.PendingSet)
	if !ok {
		return nil, fmt.Errorf("unsupported pending type: %T", pending)
	}
	collector := NewCollector(b.config, b.queue, set)
	scores, err := collector.Collect(ctx)
	b.last = collector.Stats()
	if missing := set.Seeds(); len(missing) > 0 {
		logrus.WithField("seeds", missing).Warn("trials lost")
		progress.UpdateCtx(ctx, progress.Delta{Pending: -len(missing)})
	}
	return scores, err
}

// LastStats returns statistics of the most recent Collect
func (b *Backend) LastStats() Stats {
	return b.last
}

// New creates a remote backend
func New(config Config, inv invoker.Invoker, queue messaging.Queue) (*Backend, error) {
	if inv == nil {
		return nil, fmt.Errorf("remote backend requires an invoker")
	}
	if queue == nil {
		return nil, fmt.Errorf("remote backend requires a completion queue")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Backend{config: config, invoker: inv, queue: queue}, nil
}

var _ backend.Backend = (*Backend)(nil)
