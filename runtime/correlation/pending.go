package correlation

import (
	"fmt"
	"sort"
	"sync"
)

// PendingSet tracks trials that were dispatched but have not been matched with
// a result yet. It maps a correlation id to the trial seed.
//
// An id leaves the set exactly once, on its first matching delivery, and can
// never be added back; later deliveries of the same id are reported as
// duplicates.
type PendingSet struct {
	mu      sync.Mutex
	pending map[string]int
	matched map[string]struct{}
}

// NewPendingSet creates an empty set sized for n trials.
func NewPendingSet(n int) *PendingSet {
	return &PendingSet{
		pending: make(map[string]int, n),
		matched: make(map[string]struct{}, n),
	}
}

// Add registers a dispatched trial.
func (p *PendingSet) Add(id string, seed int) error {
	if id == "" {
		return fmt.Errorf("correlation id was empty")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pending[id]; ok {
		return fmt.Errorf("correlation id %s is already pending", id)
	}
	if _, ok := p.matched[id]; ok {
		return fmt.Errorf("correlation id %s was already matched", id)
	}
	p.pending[id] = seed
	return nil
}

// Take removes id and returns its seed. ok is false when the id is not
// pending, either because it was matched before (duplicate) or was never
// dispatched in this episode (stray).
func (p *PendingSet) Take(id string) (seed int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	seed, ok = p.pending[id]
	if !ok {
		return 0, false
	}
	delete(p.pending, id)
	p.matched[id] = struct{}{}
	return seed, true
}

// Matched reports whether id was already taken.
func (p *PendingSet) Matched(id string) bool {
	p.mu.Lock()
	_, ok := p.matched[id]
	p.mu.Unlock()
	return ok
}

// Len returns the number of pending ids.
func (p *PendingSet) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Seeds returns the seeds still pending, sorted.
func (p *PendingSet) Seeds() []int {
	p.mu.Lock()
	ret := make([]int, 0, len(p.pending))
	for _, seed := range p.pending {
		ret = append(ret, seed)
	}
	p.mu.Unlock()
	sort.Ints(ret)
	return ret
}
