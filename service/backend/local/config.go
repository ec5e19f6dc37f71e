package local

import (
	"fmt"
	"runtime"
	"time"

	"github.com/viant/scatter/service/process"
)

// Config defines the local process pool
type Config struct {
	// Workers bounds concurrently running worker processes
	Workers int `json:"workers" yaml:"workers"`
	// PollInterval is the pause after a round in which no worker exited
	PollInterval time.Duration `json:"pollInterval" yaml:"pollInterval"`
	// Worker is the heuristic command; it gets params as its argument, the
	// instance on stdin and writes its answer to stdout
	Worker string `json:"worker" yaml:"worker"`
	// Judge is the scoring command, run as `judge input output`
	Judge string `json:"judge" yaml:"judge"`
	// InputURL holds instances named {seed:04}.txt
	InputURL string `json:"inputURL" yaml:"inputURL"`
	// WorkURL receives per-trial {index:04}.in and {index:04}.out artifacts
	WorkURL string `json:"workURL" yaml:"workURL"`
	// ScoreScale divides the judge's score
	ScoreScale float64 `json:"scoreScale" yaml:"scoreScale"`
	// Process configures where and how commands run
	Process process.Config `json:"process" yaml:"process"`
}

// DefaultConfig returns the default local configuration
func DefaultConfig() Config {
	return Config{
		Workers:      runtime.NumCPU(),
		PollInterval: 100 * time.Millisecond,
		InputURL:     "tools/in",
		WorkURL:      "tmp",
		ScoreScale:   1,
		Process:      process.Config{Timeout: process.DefaultTimeout},
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("local workers must be positive: %d", c.Workers)
	}
	if c.Worker == "" {
		return fmt.Errorf("local worker command was empty")
	}
	if c.Judge == "" {
		return fmt.Errorf("local judge command was empty")
	}
	if c.InputURL == "" || c.WorkURL == "" {
		return fmt.Errorf("local inputURL and workURL are required")
	}
	if c.ScoreScale == 0 {
		return fmt.Errorf("local scoreScale cannot be zero")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("local pollInterval cannot be negative")
	}
	return nil
}
