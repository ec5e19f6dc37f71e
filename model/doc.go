// Package model contains the in-memory representation of a sampling episode.
//
// The trial sub-package defines the immutable units of work dispatched to a
// backend and the per-seed score mapping a backend returns.
package model
