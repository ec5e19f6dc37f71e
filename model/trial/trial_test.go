package trial

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/scatter/internal/idgen"
)

func TestNewSet(t *testing.T) {
	testCases := []struct {
		name   string
		seeds  []int
		expect []int
	}{
		{name: "range", seeds: Range(4), expect: []int{0, 1, 2, 3}},
		{name: "duplicate seeds", seeds: []int{7, 3, 7, 1, 3}, expect: []int{7, 3, 1}},
		{name: "empty", seeds: nil, expect: []int{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			set := NewSet([]byte(`{"temp0":0.1}`), tc.seeds)
			assert.Equal(t, tc.expect, set.Seeds())
			ids := map[string]bool{}
			for i, tr := range set.Trials {
				assert.Equal(t, i, tr.Index)
				assert.Equal(t, `{"temp0":0.1}`, string(tr.Params))
				assert.False(t, ids[tr.CorrelationID], "correlation id reused")
				ids[tr.CorrelationID] = true
			}
		})
	}
}

func TestNewSet_StubbedIDs(t *testing.T) {
	original := idgen.NewFunc
	defer func() { idgen.NewFunc = original }()
	counter := 0
	idgen.NewFunc = func() string {
		counter++
		return fmt.Sprintf("id-%d", counter)
	}
	set := NewSet(nil, []int{10, 20})
	assert.Equal(t, "id-1", set.Trials[0].CorrelationID)
	assert.Equal(t, "id-2", set.Trials[1].CorrelationID)
}

func TestScores(t *testing.T) {
	set := NewSet(nil, Range(5))
	scores := Scores{3: 0.5, 0: 0.25, 1: 0.75}
	assert.Equal(t, []int{0, 1, 3}, scores.Seeds())
	assert.Equal(t, []int{2, 4}, scores.Missing(set))
	assert.Nil(t, Range(0))
}
