package pipeline

import (
	"errors"
	"fmt"
)

// ErrPermanent marks a failure that must not be retried: the message is
// acknowledged and dropped instead of requeued. Permanent failures are
// surfaced only through the stored task state and the outcome events.
var ErrPermanent = errors.New("permanent failure")

// Permanent wraps err so IsPermanent reports true for it.
func Permanent(err error) error {
	return fmt.Errorf("%w: %v", ErrPermanent, err)
}

// IsPermanent reports whether err is a permanent, non-retryable failure.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
