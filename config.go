package scatter

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/scatter/model/trial"
	"github.com/viant/scatter/service/backend"
	"github.com/viant/scatter/service/backend/local"
	"github.com/viant/scatter/service/backend/remote"
	httpinvoker "github.com/viant/scatter/service/invoker/http"
	"github.com/viant/scatter/service/messaging"
	"github.com/viant/scatter/service/study"
	"github.com/viant/scatter/service/worker"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the coordinator configuration.
// Durations are written as strings, for example "1s" or "5m".
type Config struct {
	Backend backend.Kind `json:"backend" yaml:"backend"`
	// Samples is the number of trials per evaluation; seeds are 0..samples-1
	Samples int `json:"samples" yaml:"samples"`
	// Seeds, when set, replaces the 0..samples-1 range
	Seeds   []int         `json:"seeds,omitempty" yaml:"seeds,omitempty"`
	Remote  RemoteConfig  `json:"remote" yaml:"remote"`
	Local   local.Config  `json:"local" yaml:"local"`
	Worker  worker.Config `json:"worker" yaml:"worker"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Study   StudyConfig   `json:"study" yaml:"study"`
}

// RemoteConfig combines collection settings with the invoker and queue
type RemoteConfig struct {
	remote.Config `yaml:",inline"`
	Invoker       httpinvoker.Config `json:"invoker" yaml:"invoker"`
	Queue         messaging.Config   `json:"queue" yaml:"queue"`
}

// TracingConfig enables OpenTelemetry tracing
type TracingConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Output is a trace file; stdout when empty
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
}

// StudyConfig configures the optimize loop
type StudyConfig struct {
	Name string `json:"name" yaml:"name"`
	// Trials is the number of candidates; 0 runs until interrupted
	Trials  int            `json:"trials" yaml:"trials"`
	Seed    uint64         `json:"seed" yaml:"seed"`
	Space   study.Space    `json:"space,omitempty" yaml:"space,omitempty"`
	Enqueue []study.Params `json:"enqueue,omitempty" yaml:"enqueue,omitempty"`
}

// DefaultConfig returns a Config populated with default values. Callers may
// modify the returned struct before passing it to New.
func DefaultConfig() *Config {
	return &Config{
		Backend: backend.KindRemote,
		Samples: 100,
		Remote: RemoteConfig{
			Config:  remote.DefaultConfig(),
			Invoker: httpinvoker.Config{URL: "http://localhost:8080/"},
			Queue: messaging.Config{
				Vendor:            messaging.VendorFS,
				URL:               "/tmp/scatter/queue",
				VisibilityTimeout: messaging.DefaultVisibilityTimeout,
			},
		},
		Local:  local.DefaultConfig(),
		Worker: worker.DefaultConfig(),
		Study: StudyConfig{
			Name:  "scatter",
			Space: study.DefaultSpace(),
		},
	}
}

// SeedList returns the explicit seeds, or 0..samples-1
func (c *Config) SeedList() []int {
	if len(c.Seeds) > 0 {
		return c.Seeds
	}
	return trial.Range(c.Samples)
}

// Validate returns an error describing the first invalid setting, or nil.
// Only the section of the selected backend is checked.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Samples <= 0 && len(c.Seeds) == 0 {
		return fmt.Errorf("samples must be > 0")
	}
	switch c.Backend {
	case backend.KindRemote:
		if err := c.Remote.Validate(); err != nil {
			return err
		}
		switch c.Remote.Queue.Vendor {
		case messaging.VendorMemory, messaging.VendorNATS:
		case messaging.VendorFS:
			if c.Remote.Queue.URL == "" {
				return fmt.Errorf("remote.queue.url is required for %v queue", c.Remote.Queue.Vendor)
			}
		default:
			return fmt.Errorf("unsupported remote.queue.vendor: %q", c.Remote.Queue.Vendor)
		}
	case backend.KindLocal:
		if err := c.Local.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported backend: %q", c.Backend)
	}
	return nil
}

// LoadConfig reads a YAML (or JSON) configuration from any afs URL on top of
// DefaultConfig
func LoadConfig(ctx context.Context, URL string, fs afs.Service, options ...storage.Option) (*Config, error) {
	if fs == nil {
		fs = afs.New()
	}
	data, err := fs.DownloadWithURL(ctx, URL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	config := DefaultConfig()
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to decode config %v: %w", URL, err)
	}
	return config, nil
}
