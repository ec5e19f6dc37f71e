// Package tracing wraps OpenTelemetry so the sampling code can open and close
// spans around dispatch and collection without importing the SDK directly.
// When tracing is never initialised the global no-op provider is used and
// spans cost nothing.
package tracing
