// Package progress keeps per-evaluation trial counters (dispatched, completed,
// failed, duplicate deliveries, acknowledged messages). The tracker travels in
// the context so that both backends can report without a global registry.
package progress
