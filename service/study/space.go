package study

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
)

// Parameter is one searchable dimension
type Parameter struct {
	Name string  `json:"name" yaml:"name"`
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
	// Log samples uniformly in log space
	Log bool `json:"log,omitempty" yaml:"log,omitempty"`
}

// Validate checks the parameter bounds
func (p *Parameter) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("parameter name was empty")
	}
	if p.High < p.Low {
		return fmt.Errorf("parameter %v: high %v is below low %v", p.Name, p.High, p.Low)
	}
	if p.Log && p.Low <= 0 {
		return fmt.Errorf("parameter %v: log scale requires a positive low bound", p.Name)
	}
	return nil
}

// Sample draws a value
func (p *Parameter) Sample(rnd *rand.Rand) float64 {
	u := rnd.Float64()
	if p.Log {
		low, high := math.Log(p.Low), math.Log(p.High)
		return math.Exp(low + u*(high-low))
	}
	return p.Low + u*(p.High-p.Low)
}

// Space is an ordered set of parameters
type Space []*Parameter

// Validate checks every parameter and rejects duplicate names
func (s Space) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("search space was empty")
	}
	seen := map[string]bool{}
	for _, p := range s {
		if p == nil {
			return fmt.Errorf("search space has a nil parameter")
		}
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate parameter: %v", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Lookup returns the named parameter
func (s Space) Lookup(name string) *Parameter {
	for _, p := range s {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Sample draws a value for every parameter not already set in fixed
func (s Space) Sample(rnd *rand.Rand, fixed Params) Params {
	ret := make(Params, len(s))
	for _, p := range s {
		if value, ok := fixed[p.Name]; ok {
			ret[p.Name] = value
			continue
		}
		ret[p.Name] = p.Sample(rnd)
	}
	return ret
}

// Params maps a parameter name to its value
type Params map[string]float64

// Marshal encodes params as compact JSON with sorted keys
func (p Params) Marshal() ([]byte, error) {
	return json.Marshal(map[string]float64(p))
}

// DefaultSpace returns the simulated annealing search space: temperatures
// and neighbourhood distances on a log scale, move weights uniform in [0,1].
func DefaultSpace() Space {
	logScale := func(name string, low, high float64) *Parameter {
		return &Parameter{Name: name, Low: low, High: high, Log: true}
	}
	uniform := func(name string) *Parameter {
		return &Parameter{Name: name, Low: 0, High: 1}
	}
	return Space{
		logScale("temp0", 1e-2, 1.0),
		logScale("temp1", 1e-6, 1e-2),
		logScale("slide_d_start", 1, 2048),
		logScale("slide_d_end", 1, 1024),
		logScale("grow_d1_start", 1, 1024),
		logScale("grow_d1_end", 1, 128),
		logScale("grow_d2_start", 1, 2048),
		logScale("grow_d2_end", 1, 2048),
		logScale("grow_d3_start", 1, 2048),
		logScale("grow_d3_end", 1, 2048),
		uniform("weight_slide_start"),
		uniform("weight_slide_end"),
		uniform("weight_d1_start"),
		uniform("weight_d1_end"),
		uniform("weight_d2_start"),
		uniform("weight_d2_end"),
		uniform("weight_d3_start"),
		uniform("weight_d3_end"),
	}
}
