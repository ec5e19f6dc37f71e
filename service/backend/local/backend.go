// Package local executes trials as worker processes under a bounded pool and
// scores them with an external judge in a sequential pass.
package local

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/scatter/internal/clock"
	"github.com/viant/scatter/model/trial"
	"github.com/viant/scatter/progress"
	"github.com/viant/scatter/service/backend"
	"github.com/viant/scatter/service/process"
	"github.com/viant/scatter/tracing"
)

// Outcome lists dispatched trials by exit status
type Outcome struct {
	Succeeded []*trial.Trial
	Failed    []*trial.Trial
}

// Len returns the number of trials awaiting a score
func (o *Outcome) Len() int {
	if o == nil {
		return 0
	}
	return len(o.Succeeded)
}

// handle tracks one running worker process
type handle struct {
	trial *trial.Trial
	done  chan exit
}

type exit struct {
	result *process.Result
	err    error
}

// Backend runs trials through a process runner
type Backend struct {
	config Config
	runner process.Runner
	fs     afs.Service
}

// Name returns backend name
func (b *Backend) Name() string {
	return string(backend.KindLocal)
}

// Dispatch runs every trial, at most Workers at a time, and waits for every
// started worker. Once ctx is done no further workers start.
func (b *Backend) Dispatch(ctx context.Context, set *trial.Set) (backend.Pending, error) {
	exists, err := b.fs.Exists(ctx, b.config.WorkURL)
	if err != nil {
		return nil, fmt.Errorf("failed to check work location %v: %w", b.config.WorkURL, err)
	}
	if !exists {
		if err := b.fs.Create(ctx, b.config.WorkURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create work location %v: %w", b.config.WorkURL, err)
		}
	}
	outcome := &Outcome{}
	var active []*handle
	next := 0
	for next < set.Len() || len(active) > 0 {
		for len(active) < b.config.Workers && next < set.Len() && ctx.Err() == nil {
			t := set.Trials[next]
			next++
			h, err := b.start(ctx, t)
			if err != nil {
				logrus.WithError(err).WithField("seed", t.Seed).Warn("failed to start worker")
				outcome.Failed = append(outcome.Failed, t)
				progress.UpdateCtx(ctx, progress.Delta{Failed: 1})
				continue
			}
			active = append(active, h)
		}
		if next >= set.Len() || ctx.Err() != nil {
			for _, h := range active {
				b.finish(ctx, h, <-h.done, outcome)
			}
			active = nil
			break
		}
		exited := false
		running := active[:0]
		for _, h := range active {
			select {
			case e := <-h.done:
				b.finish(ctx, h, e, outcome)
				exited = true
			default:
				running = append(running, h)
			}
		}
		active = running
		if !exited {
			clock.Sleep(ctx, b.config.PollInterval)
		}
	}
	sort.Slice(outcome.Succeeded, func(i, j int) bool {
		return outcome.Succeeded[i].Index < outcome.Succeeded[j].Index
	})
	logrus.WithFields(logrus.Fields{
		"trials":    set.Len(),
		"succeeded": len(outcome.Succeeded),
		"failed":    len(outcome.Failed),
	}).Info("local dispatch finished")
	return outcome, ctx.Err()
}

// start stages the trial input and launches its worker. The worker runs
// detached from ctx cancellation.
func (b *Backend) start(ctx context.Context, t *trial.Trial) (*handle, error) {
	source := url.Join(b.config.InputURL, fmt.Sprintf("%04d.txt", t.Seed))
	if err := b.fs.Copy(ctx, source, b.inputURL(t)); err != nil {
		return nil, fmt.Errorf("failed to stage input %v: %w", source, err)
	}
	command := fmt.Sprintf("%s %s < %s > %s", b.config.Worker, process.ShellQuote(string(t.Params)),
		process.ShellQuote(url.Path(b.inputURL(t))), process.ShellQuote(url.Path(b.outputURL(t))))
	h := &handle{trial: t, done: make(chan exit, 1)}
	runCtx := context.WithoutCancel(ctx)
	go func() {
		result, err := b.runner.Run(runCtx, command)
		h.done <- exit{result: result, err: err}
	}()
	progress.UpdateCtx(ctx, progress.Delta{Dispatched: 1, Pending: 1})
	return h, nil
}

func (b *Backend) finish(ctx context.Context, h *handle, e exit, outcome *Outcome) {
	progress.UpdateCtx(ctx, progress.Delta{Pending: -1})
	if e.err == nil && e.result.Succeeded() {
		outcome.Succeeded = append(outcome.Succeeded, h.trial)
		return
	}
	outcome.Failed = append(outcome.Failed, h.trial)
	progress.UpdateCtx(ctx, progress.Delta{Failed: 1})
	fields := logrus.Fields{"seed": h.trial.Seed, "index": h.trial.Index}
	if e.result != nil {
		fields["status"] = e.result.Status
		fields["stderr"] = e.result.Stderr
	}
	logrus.WithError(e.err).WithFields(fields).Warn("worker failed")
}

// Collect runs the judge for every successful trial, one at a time. A trial
// whose judge fails or prints no number scores 0.
func (b *Backend) Collect(ctx context.Context, pending backend.Pending) (trial.Scores, error) {
	outcome, ok := pending.(*Outcome)
	if !ok {
		return nil, fmt.Errorf("unsupported pending type: %T", pending)
	}
	ctx, span := tracing.StartSpan(ctx, "local.Score", tracing.KindInternal)
	span.WithInt("trials", outcome.Len())
	scores := make(trial.Scores, outcome.Len())
	var err error
	for _, t := range outcome.Succeeded {
		if err = ctx.Err(); err != nil {
			break
		}
		scores[t.Seed] = b.score(ctx, t)
		progress.UpdateCtx(ctx, progress.Delta{Completed: 1})
	}
	tracing.EndSpan(span, err)
	return scores, err
}

func (b *Backend) score(ctx context.Context, t *trial.Trial) float64 {
	command := fmt.Sprintf("%s %s %s", b.config.Judge,
		process.ShellQuote(url.Path(b.inputURL(t))), process.ShellQuote(url.Path(b.outputURL(t))))
	fields := logrus.Fields{"seed": t.Seed, "index": t.Index}
	result, err := b.runner.Run(ctx, command)
	if err != nil || !result.Succeeded() {
		if result != nil {
			fields["status"] = result.Status
			fields["output"] = result.Output
			fields["stderr"] = result.Stderr
		}
		logrus.WithError(err).WithFields(fields).Warn("judge failed, scoring 0")
		return 0
	}
	value, err := process.ParseScore(result.Output)
	if err != nil {
		fields["stderr"] = result.Stderr
		logrus.WithError(err).WithFields(fields).Warn("malformed judge output, scoring 0")
		return 0
	}
	return value / b.config.ScoreScale
}

func (b *Backend) inputURL(t *trial.Trial) string {
	return url.Join(b.config.WorkURL, fmt.Sprintf("%04d.in", t.Index))
}

func (b *Backend) outputURL(t *trial.Trial) string {
	return url.Join(b.config.WorkURL, fmt.Sprintf("%04d.out", t.Index))
}

// New creates a local backend. Relative input and work locations resolve
// against the current directory.
func New(config Config, runner process.Runner, fs afs.Service) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if runner == nil {
		runner = process.New(config.Process)
	}
	if fs == nil {
		fs = afs.New()
	}
	config.InputURL = url.Normalize(config.InputURL, file.Scheme)
	config.WorkURL = url.Normalize(config.WorkURL, file.Scheme)
	return &Backend{config: config, runner: runner, fs: fs}, nil
}

var _ backend.Backend = (*Backend)(nil)
