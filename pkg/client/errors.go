package client

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrNotFound is returned when the server does not know the requested
	// resource. It is not retryable.
	ErrNotFound = goerr.New("resource not found")

	// ErrUnavailable is returned when the server cannot reach its registry.
	// Callers may retry.
	ErrUnavailable = goerr.New("server unavailable")

	// ErrStreamErrored is reported by a subscription whose stream reached
	// the errored terminal status. The last-seen text stays available.
	ErrStreamErrored = goerr.New("stream ended with errored status")
)
