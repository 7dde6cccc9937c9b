package conversation

import "errors"

var (
	// ErrEmptyMessage rejects blank user input before any state is touched.
	ErrEmptyMessage = errors.New("conversation: message cannot be empty")

	// ErrMissingSession is returned when a turn arrives without a session id.
	ErrMissingSession = errors.New("conversation: session id is required")

	// ErrNoReply means a handler finished without appending an assistant message.
	ErrNoReply = errors.New("conversation: no reply generated")

	// ErrContractViolation marks a handler update that would break state invariants.
	ErrContractViolation = errors.New("conversation: handler contract violation")

	// ErrDecode is returned when a structured provider answer does not match its schema.
	ErrDecode = errors.New("conversation: structured response decode failed")

	// ErrSessionConflict is returned by SessionStore.Save when the stored
	// version moved on since the state was loaded.
	ErrSessionConflict = errors.New("conversation: session was modified concurrently")

	// ErrSessionBusy means another instance held the session lease for the whole wait.
	ErrSessionBusy = errors.New("conversation: session is busy")

	// ErrProvider wraps completion provider failures that surface to the caller.
	ErrProvider = errors.New("conversation: completion provider failed")
)

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrMissingSession)
}
