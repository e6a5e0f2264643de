package video

import (
	"errors"
	"fmt"
)

// ErrDecode marks unreadable video or frame data. Decode failures are
// deterministic: the driver fails the segment without retrying.
var ErrDecode = errors.New("video: undecodable data")

// TransientError wraps an I/O failure talking to an external collaborator
// (listing storage, spawning the decoder process). The driver retries these
// with bounded backoff.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("video: transient %s failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient marks the error as retryable.
func (e *TransientError) Transient() bool { return true }

// IsTransient reports whether any error in the chain is marked retryable.
func IsTransient(err error) bool {
	for err != nil {
		if t, ok := err.(interface{ Transient() bool }); ok {
			return t.Transient()
		}
		err = errors.Unwrap(err)
	}
	return false
}
