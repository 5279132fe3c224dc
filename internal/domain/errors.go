package domain

import "errors"

var (
	// ErrEmptySourceCode is returned when the submitted code is missing or blank.
	ErrEmptySourceCode = errors.New("no code provided")

	// ErrPayloadTooLarge is returned when the source code exceeds the size limit.
	ErrPayloadTooLarge = errors.New("source code payload exceeds maximum size")

	// ErrPoolClosed is returned when a submission arrives after shutdown began.
	ErrPoolClosed = errors.New("execution pool is shutting down")

	// ErrExampleNotFound is returned when an example program cannot be found by ID.
	ErrExampleNotFound = errors.New("example not found")

	// ErrRateLimitExceeded is returned when API rate limit is hit.
	ErrRateLimitExceeded = errors.New("rate limit exceeded, try again later")

	// ErrUnauthorized is returned when a bearer token is missing or invalid.
	ErrUnauthorized = errors.New("unauthorized")
)
