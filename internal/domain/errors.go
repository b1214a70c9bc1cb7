package domain

import "errors"

// Error taxonomy for the pipeline. Each stage wraps one of these sentinels
// with fmt.Errorf("...: %w", ...) so callers can classify failures with
// errors.Is while still seeing the stage-specific detail. Every stage fails
// fast: no retries, no partial results.
var (
	// ErrConnection means the dataset location is unreachable or unreadable.
	ErrConnection = errors.New("dataset connection failed")

	// ErrSchema means the location could not be opened as consistent
	// tabular columnar data.
	ErrSchema = errors.New("unexpected dataset schema")

	// ErrQuery means a projection or invariant check failed, e.g. a named
	// column is absent.
	ErrQuery = errors.New("query failed")

	// ErrGeometryDecode means a record's WKB payload is malformed or absent.
	ErrGeometryDecode = errors.New("geometry decode failed")

	// ErrWrite means the export target is unusable.
	ErrWrite = errors.New("output write failed")
)
