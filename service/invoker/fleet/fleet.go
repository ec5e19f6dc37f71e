// Package fleet runs worker handlers in-process, one goroutine per
// invocation, standing in for a remote function fleet.
package fleet

import (
	"context"

	"github.com/sourcegraph/conc"
	"github.com/viant/scatter/service/invoker"
)

// Handler evaluates one trial
type Handler interface {
	Handle(ctx context.Context, request *invoker.Request)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, request *invoker.Request)

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, request *invoker.Request) {
	f(ctx, request)
}

// Fleet accepts every invocation and handles it in the background
type Fleet struct {
	handler Handler
	wg      conc.WaitGroup
}

// Invoke starts handling request and returns immediately. Handlers run
// detached from ctx cancellation, like a remote function that already started.
func (f *Fleet) Invoke(ctx context.Context, request *invoker.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	copied := *request
	runCtx := context.WithoutCancel(ctx)
	f.wg.Go(func() {
		f.handler.Handle(runCtx, &copied)
	})
	return nil
}

// Wait blocks until every started handler returns; a handler panic is
// raised again here
func (f *Fleet) Wait() {
	f.wg.Wait()
}

// New creates a fleet
func New(handler Handler) *Fleet {
	return &Fleet{handler: handler}
}

var _ invoker.Invoker = (*Fleet)(nil)
