package loadtest

import "errors"

var (
	// ErrUnhealthy is returned when the service health check fails.
	ErrUnhealthy = errors.New("loadtest: service unhealthy")
	// ErrIncomplete is returned when summaries never reach the submitted count.
	ErrIncomplete = errors.New("loadtest: summaries incomplete")
	// ErrUnexpectedStatus wraps non-success HTTP responses.
	ErrUnexpectedStatus = errors.New("loadtest: unexpected status")
)
