// Package aggregate reduces per-trial scores to one fitness value.
package aggregate

import (
	"errors"

	"github.com/viant/scatter/model/trial"
)

// ErrEmptyResult reports that no trial produced a score
var ErrEmptyResult = errors.New("empty result: no trial produced a score")

// Mean returns the arithmetic mean of scores
func Mean(scores trial.Scores) (float64, error) {
	if len(scores) == 0 {
		return 0, ErrEmptyResult
	}
	sum := 0.0
	for _, seed := range scores.Seeds() {
		sum += scores[seed]
	}
	return sum / float64(len(scores)), nil
}

// Reduce returns 1 - mean(scores); lower is better. Missing trials are
// ignored, an empty mapping fails with ErrEmptyResult.
func Reduce(scores trial.Scores) (float64, error) {
	mean, err := Mean(scores)
	if err != nil {
		return 0, err
	}
	return 1 - mean, nil
}
