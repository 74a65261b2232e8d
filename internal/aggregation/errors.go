package aggregation

import (
	"errors"

	"go.temporal.io/sdk/temporal"
)

var errInvalidInput = errors.New("invalid activity input")

// nonRetryable wraps cause as a Temporal application error that is never
// retried. tag becomes the error type and names the failing activity.
func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}
