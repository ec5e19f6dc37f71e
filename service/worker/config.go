package worker

import (
	"fmt"

	"github.com/viant/scatter/service/process"
)

// Config defines a remote worker
type Config struct {
	// Addr is the HTTP listen address
	Addr string `json:"addr" yaml:"addr"`
	// Command runs the heuristic with params as its argument and the
	// instance on stdin; the last line of its output is the score
	Command string `json:"command" yaml:"command"`
	// InstanceURL holds instances named {seed:04}.txt
	InstanceURL string `json:"instanceURL" yaml:"instanceURL"`
	// ScoreScale divides the reported score
	ScoreScale float64        `json:"scoreScale" yaml:"scoreScale"`
	Process    process.Config `json:"process" yaml:"process"`
}

// DefaultConfig returns the default worker configuration
func DefaultConfig() Config {
	return Config{Addr: ":8080", InstanceURL: "tools/in", ScoreScale: 1}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Command == "" {
		return fmt.Errorf("worker command was empty")
	}
	if c.InstanceURL == "" {
		return fmt.Errorf("worker instanceURL was empty")
	}
	if c.ScoreScale == 0 {
		return fmt.Errorf("worker scoreScale cannot be zero")
	}
	return nil
}
