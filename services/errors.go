package services

import "errors"

// Sentinel errors shared by the stores and services. Handlers match on these
// with errors.Is to choose the response envelope; anything else is treated as
// a persistence failure and reported generically.
var (
	// ErrUnauthenticated means no resolvable user identity accompanied the call.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrConflict means a storage-level uniqueness invariant was violated.
	ErrConflict = errors.New("already exists")

	// ErrNotFound means the ownership-scoped target matched zero rows. A row
	// owned by another user and a row that never existed are indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrValidation means the input failed validation before any persistence access.
	ErrValidation = errors.New("invalid input")

	// ErrUpstreamUnavailable means a market-data lookup failed. It degrades a
	// field inside the aggregation engine and never aborts a batch.
	ErrUpstreamUnavailable = errors.New("market data unavailable")
)
