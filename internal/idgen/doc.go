// Package idgen issues the opaque identifiers used to correlate dispatched
// trials with their result messages. Callers must treat the values as opaque
// strings; only uniqueness within a dispatch batch is relied upon.
package idgen
