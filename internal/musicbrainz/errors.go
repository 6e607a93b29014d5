package musicbrainz

import (
	"errors"
	"fmt"
	"time"
)

// TransientError indicates a retryable failure: a network-level error or a
// rate-limit/unavailable response from the API. It is returned to callers
// only once the retry budget is exhausted.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient musicbrainz failure: %v", e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }

// RequestError indicates a non-retryable HTTP response.
type RequestError struct {
	StatusCode int
	URL        string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("musicbrainz returned HTTP %d for %s", e.StatusCode, e.URL)
}

// ConnectionTimeoutError indicates the wall-clock ceiling for one logical
// operation (a search or a full paginated fetch) was exhausted before the
// retry loop could finish.
type ConnectionTimeoutError struct {
	Elapsed time.Duration
	Limit   time.Duration
}

func (e *ConnectionTimeoutError) Error() string {
	return fmt.Sprintf("connection timeout exceeded (%s elapsed, limit %s)", e.Elapsed, e.Limit)
}

// retryable reports whether an attempt failure should go through backoff.
func retryable(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
