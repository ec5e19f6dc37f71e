package trial

import (
	"sort"

	"github.com/viant/scatter/internal/idgen"
)

// Trial is one independent execution of the heuristic for a seed and a
// parameter blob. A trial is immutable once created.
type Trial struct {
	CorrelationID string `json:"correlationId"`
	Index         int    `json:"index"`
	Seed          int    `json:"seed"`
	Params        []byte `json:"params,omitempty"`
}

// Set is the fixed collection of trials executed for one evaluation.
type Set struct {
	Params []byte
	Trials []*Trial
}

// NewSet creates a trial for every distinct seed, in the order given. Each
// trial receives a fresh correlation id.
func NewSet(params []byte, seeds []int) *Set {
	ret := &Set{Params: params, Trials: make([]*Trial, 0, len(seeds))}
	seen := make(map[int]bool, len(seeds))
	for _, seed := range seeds {
		if seen[seed] {
			continue
		}
		seen[seed] = true
		ret.Trials = append(ret.Trials, &Trial{
			CorrelationID: idgen.New(),
			Index:         len(ret.Trials),
			Seed:          seed,
			Params:        params,
		})
	}
	return ret
}

// Len returns number of trials
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Trials)
}

// Seeds returns trial seeds in dispatch order
func (s *Set) Seeds() []int {
	ret := make([]int, 0, s.Len())
	for _, t := range s.Trials {
		ret = append(ret, t.Seed)
	}
	return ret
}

// Range returns seeds 0..n-1.
func Range(n int) []int {
	if n <= 0 {
		return nil
	}
	ret := make([]int, n)
	for i := range ret {
		ret[i] = i
	}
	return ret
}

// Scores maps a seed to the score its trial produced.
type Scores map[int]float64

// Seeds returns the scored seeds in ascending order.
func (s Scores) Seeds() []int {
	ret := make([]int, 0, len(s))
	for seed := range s {
		ret = append(ret, seed)
	}
	sort.Ints(ret)
	return ret
}

// Missing returns seeds of the set that have no score.
func (s Scores) Missing(set *Set) []int {
	var ret []int
	for _, t := range set.Trials {
		if _, ok := s[t.Seed]; !ok {
			ret = append(ret, t.Seed)
		}
	}
	return ret
}
