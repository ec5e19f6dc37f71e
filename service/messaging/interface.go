package messaging

import (
	"context"
	"time"
)

// Vendor represents the name of a messaging vendor
type Vendor string

const (
	// VendorMemory is the in-process queue
	VendorMemory Vendor = "memory"
	// VendorFS is the afs-backed directory queue
	VendorFS Vendor = "fs"
	// VendorNATS is a NATS JetStream stream
	VendorNATS Vendor = "nats"
)

// Completion is what a worker emits after scoring one trial.
type Completion struct {
	CorrelationID string  `json:"message_id"`
	Seed          int     `json:"seed"`
	Score         float64 `json:"score"`
}

// Message is one delivery of a Completion. The same completion may be
// delivered more than once; every delivery carries its own AckToken.
type Message struct {
	CorrelationID string
	Score         float64
	AckToken      string
}

// Queue is an at-least-once completion queue seen from the collector side.
type Queue interface {
	// Poll returns up to max visible messages; an empty slice means the queue
	// had nothing to deliver.
	Poll(ctx context.Context, max int) ([]*Message, error)

	// Acknowledge deletes delivered messages and returns the tokens that were
	// acknowledged successfully. Tokens missing from the result were not.
	Acknowledge(ctx context.Context, tokens []string) ([]string, error)
}

// Publisher is the worker side of the queue.
type Publisher interface {
	Publish(ctx context.Context, completion *Completion) error
}

// Config defines queue selection and delivery settings
type Config struct {
	Vendor Vendor `json:"vendor" yaml:"vendor"`
	// URL is the afs base URL of an fs queue or the server URL of a nats queue
	URL string `json:"url" yaml:"url"`
	// Stream and Subject locate nats completions
	Stream  string `json:"stream,omitempty" yaml:"stream,omitempty"`
	Subject string `json:"subject,omitempty" yaml:"subject,omitempty"`
	// VisibilityTimeout is how long a polled but unacknowledged message stays
	// hidden before it is delivered again
	VisibilityTimeout time.Duration `json:"visibilityTimeout" yaml:"visibilityTimeout"`
}

// DefaultVisibilityTimeout matches the usual hosted queue default
const DefaultVisibilityTimeout = 30 * time.Second
