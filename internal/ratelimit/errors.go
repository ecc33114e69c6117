package ratelimit

import "errors"

var (
	// ErrLimitExceeded is returned by an UpdateFunc when the window quota is spent.
	// Stores pass it through unchanged and must not write anything.
	ErrLimitExceeded = errors.New("rate limit exceeded")

	// ErrContention is returned by optimistic stores that could not commit within their retry budget.
	ErrContention = errors.New("rate limit store contention")
)

// IsLimitExceeded reports whether err signals a spent quota rather than a storage failure.
func IsLimitExceeded(err error) bool {
	return errors.Is(err, ErrLimitExceeded)
}
