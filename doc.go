// Package scatter measures a parameterized heuristic by running it on many
// independent problem instances ("trials") and reducing their scores to one
// fitness value for a black-box optimizer.
//
// A Service dispatches one trial per seed to a backend and gathers the
// results:
//
//   - remote – fire-and-forget invocations, results collected from an
//     at-least-once completion queue with first-seen deduplication, batched
//     acknowledgment and a time budget
//   - local  – a bounded pool of worker processes followed by a sequential
//     judge pass
//
// Typical use:
//
//	srv, _ := scatter.New(ctx, config)
//	fitness, err := srv.Evaluate(ctx, []byte(`{"temp0":0.1}`), nil)
//	if errors.Is(err, aggregate.ErrEmptyResult) {
//		// every trial was lost
//	}
//
// Lost trials are not retried; fitness is computed over the delivered scores.
package scatter
