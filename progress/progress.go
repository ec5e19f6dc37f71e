package progress

import (
	"context"
	"sync"
	"time"

	"github.com/viant/scatter/internal/clock"
)

// Delta represents an incremental counter change emitted by a backend. Fields
// are signed so a change can also decrement (e.g. Pending).
type Delta struct {
	Dispatched   int
	Completed    int
	Failed       int
	Duplicates   int
	Acknowledged int
	Pending      int
}

// Progress keeps aggregated trial counters for one evaluation. It is safe for
// concurrent use.
type Progress struct {
	EvaluationID string
	Backend      string
	StartedAt    time.Time

	Dispatched   int
	Completed    int
	Failed       int
	Duplicates   int
	Acknowledged int
	Pending      int

	sync.Mutex
	onChange func(Progress)
}

// Update applies d. The onChange callback, if any, receives a copy taken under
// the lock and runs outside of it.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.Lock()
	p.Dispatched += d.Dispatched
	p.Completed += d.Completed
	p.Failed += d.Failed
	p.Duplicates += d.Duplicates
	p.Acknowledged += d.Acknowledged
	p.Pending += d.Pending
	snapshot := p.copy()
	cb := p.onChange
	p.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the tracker for read-only inspection.
func (p *Progress) Snapshot() Progress {
	if p == nil {
		return Progress{}
	}
	p.Lock()
	defer p.Unlock()
	return p.copy()
}

// Lost returns the number of dispatched trials that neither completed nor
// are still pending.
func (p *Progress) Lost() int {
	lost := p.Dispatched - p.Completed - p.Pending
	if lost < 0 {
		return 0
	}
	return lost
}

// OnChange registers a callback invoked after every Update. Passing nil
// disables it.
func (p *Progress) OnChange(cb func(Progress)) {
	if p == nil {
		return
	}
	p.Lock()
	p.onChange = cb
	p.Unlock()
}

func (p *Progress) copy() Progress {
	return Progress{
		EvaluationID: p.EvaluationID,
		Backend:      p.Backend,
		StartedAt:    p.StartedAt,
		Dispatched:   p.Dispatched,
		Completed:    p.Completed,
		Failed:       p.Failed,
		Duplicates:   p.Duplicates,
		Acknowledged: p.Acknowledged,
		Pending:      p.Pending,
	}
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithNewTracker creates a tracker, embeds it in a derived context and
// returns both.
func WithNewTracker(ctx context.Context, evaluationID, backend string, onChange func(Progress)) (context.Context, *Progress) {
	if ctx == nil {
		ctx = context.Background()
	}
	tr := &Progress{
		EvaluationID: evaluationID,
		Backend:      backend,
		StartedAt:    clock.Now(),
		onChange:     onChange,
	}
	return context.WithValue(ctx, trackerKey, tr), tr
}

// FromContext extracts the tracker from ctx.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Progress)
	return tr, ok
}

// UpdateCtx applies d to the tracker carried by ctx, if any.
func UpdateCtx(ctx context.Context, d Delta) {
	if tr, ok := FromContext(ctx); ok {
		tr.Update(d)
	}
}
