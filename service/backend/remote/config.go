package remote

import (
	"fmt"
	"time"
)

// Config defines remote dispatch and collection settings
type Config struct {
	// BatchSize caps messages per poll and tokens per acknowledgment; hosted
	// queues usually allow at most 10
	BatchSize int `json:"batchSize" yaml:"batchSize"`
	// Backoff is the pause after a round that received nothing
	Backoff time.Duration `json:"backoff" yaml:"backoff"`
	// Timeout bounds a collection episode
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// SettleDelay elapses between dispatch and the first poll
	SettleDelay time.Duration `json:"settleDelay" yaml:"settleDelay"`
}

// DefaultConfig returns the default remote configuration
func DefaultConfig() Config {
	return Config{
		BatchSize:   10,
		Backoff:     time.Second,
		Timeout:     300 * time.Second,
		SettleDelay: time.Second,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("remote batchSize must be positive: %d", c.BatchSize)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("remote timeout must be positive: %v", c.Timeout)
	}
	if c.Backoff < 0 || c.SettleDelay < 0 {
		return fmt.Errorf("remote backoff and settleDelay cannot be negative")
	}
	return nil
}
