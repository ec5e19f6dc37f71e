// Package study drives a black-box search over a parameter space, asking for
// candidate parameters and recording the fitness reported for each.
package study

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/viant/scatter/internal/clock"
)

// State is a trial state
type State string

const (
	StateRunning  State = "running"
	StateComplete State = "complete"
	StateFailed   State = "failed"
)

// Trial is one evaluated candidate. Lower values are better.
type Trial struct {
	Number   int       `json:"number" yaml:"number"`
	Params   Params    `json:"params" yaml:"params"`
	Value    float64   `json:"value" yaml:"value"`
	State    State     `json:"state" yaml:"state"`
	Error    string    `json:"error,omitempty" yaml:"error,omitempty"`
	Started  time.Time `json:"started" yaml:"started"`
	Finished time.Time `json:"finished,omitempty" yaml:"finished,omitempty"`
}

// Objective evaluates an encoded parameter blob
type Objective func(ctx context.Context, params []byte) (float64, error)

// Study keeps the history of one search. It is safe for concurrent use.
type Study struct {
	Name    string
	space   Space
	rnd     *rand.Rand
	mu      sync.Mutex
	queue   []Params
	history []*Trial
}

// Enqueue schedules params to be asked next, before any sampled candidate.
// Parameters left out are sampled.
func (s *Study) Enqueue(params Params) error {
	for name := range params {
		if s.space.Lookup(name) == nil {
			return fmt.Errorf("unknown parameter: %v", name)
		}
	}
	s.mu.Lock()
	s.queue = append(s.queue, params)
	s.mu.Unlock()
	return nil
}

// Ask starts a new trial
func (s *Study) Ask() *Trial {
	s.mu.Lock()
	defer s.mu.Unlock()
	var fixed Params
	if len(s.queue) > 0 {
		fixed = s.queue[0]
		s.queue = s.queue[1:]
	}
	t := &Trial{
		Number:  len(s.history),
		Params:  s.space.Sample(s.rnd, fixed),
		State:   StateRunning,
		Started: clock.Now(),
	}
	s.history = append(s.history, t)
	return t
}

// Tell finishes t with value, or marks it failed when err is set
func (s *Study) Tell(t *Trial, value float64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t == nil || t.Number >= len(s.history) || s.history[t.Number] != t {
		return fmt.Errorf("trial does not belong to study %v", s.Name)
	}
	if t.State != StateRunning {
		return fmt.Errorf("trial %d already finished", t.Number)
	}
	t.Finished = clock.Now()
	if err != nil {
		t.State = StateFailed
		t.Error = err.Error()
		return nil
	}
	t.State = StateComplete
	t.Value = value
	return nil
}

// Best returns the completed trial with the lowest value
func (s *Study) Best() (*Trial, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Trial
	for _, t := range s.history {
		if t.State != StateComplete {
			continue
		}
		if best == nil || t.Value < best.Value {
			best = t
		}
	}
	return best, best != nil
}

// History returns a copy of every trial so far
func (s *Study) History() []Trial {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]Trial, len(s.history))
	for i, t := range s.history {
		ret[i] = *t
	}
	return ret
}

// Optimize evaluates n candidates, or runs until ctx is done when n <= 0.
// A failed evaluation is recorded and the search goes on.
func (s *Study) Optimize(ctx context.Context, objective Objective, n int) (*Trial, error) {
	for i := 0; n <= 0 || i < n; i++ {
		if err := ctx.Err(); err != nil {
			best, _ := s.Best()
			return best, err
		}
		t := s.Ask()
		fields := logrus.Fields{"study": s.Name, "trial": t.Number}
		blob, err := t.Params.Marshal()
		if err == nil {
			var value float64
			value, err = objective(ctx, blob)
			if err == nil {
				_ = s.Tell(t, value, nil)
				best, _ := s.Best()
				logrus.WithFields(fields).WithFields(logrus.Fields{"value": value, "best": best.Value, "bestTrial": best.Number}).Info("trial finished")
				continue
			}
		}
		_ = s.Tell(t, 0, err)
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			best, _ := s.Best()
			return best, err
		}
		logrus.WithError(err).WithFields(fields).Warn("trial failed")
	}
	best, ok := s.Best()
	if !ok {
		return nil, fmt.Errorf("study %v has no completed trial", s.Name)
	}
	return best, nil
}

// New creates a study over space; seed makes sampling reproducible
func New(name string, space Space, seed uint64) (*Study, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	return &Study{
		Name:  name,
		space: space,
		rnd:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}
