package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/viant/scatter/service/invoker"
)

// InvocationTypeHeader asks the endpoint to run the request asynchronously
const InvocationTypeHeader = "X-Invocation-Type"

// Config configures HTTP invocation
type Config struct {
	URL     string            `json:"url" yaml:"url"`
	Timeout time.Duration     `json:"timeout" yaml:"timeout"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Invoker posts requests to a worker endpoint
type Invoker struct {
	config Config
	client *http.Client
}

// Invoke posts request as JSON; any 2xx status counts as accepted
func (i *Invoker) Invoke(ctx context.Context, request *invoker.Request) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, i.config.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set(InvocationTypeHeader, "Event")
	for k, v := range i.config.Headers {
		httpRequest.Header.Set(k, v)
	}
	response, err := i.client.Do(httpRequest)
	if err != nil {
		return fmt.Errorf("failed to invoke %v: %w", i.config.URL, err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("invoke %v rejected: %v", i.config.URL, response.Status)
	}
	return nil
}

// New creates an HTTP invoker
func New(config Config, client *http.Client) (*Invoker, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("invoker url was empty")
	}
	if client == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Invoker{config: config, client: client}, nil
}

var _ invoker.Invoker = (*Invoker)(nil)
