// Package invoker defines fire-and-forget dispatch of one trial to a remote
// worker.
package invoker

import (
	"context"
)

// Request is the payload handed to a worker for one trial
type Request struct {
	CorrelationID string `json:"message_id"`
	Seed          int    `json:"seed"`
	// Params is the opaque parameter blob, passed to the heuristic verbatim
	Params string `json:"arg"`
}

// Invoker starts an asynchronous evaluation. A nil error only means the
// request was accepted; the result, if any, arrives on the completion queue.
type Invoker interface {
	Invoke(ctx context.Context, request *Request) error
}

// Func adapts a function to Invoker
type Func func(ctx context.Context, request *Request) error

// Invoke calls f
func (f Func) Invoke(ctx context.Context, request *Request) error {
	return f(ctx, request)
}
