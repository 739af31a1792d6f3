package app

import "errors"

// AdmissionError is a user-facing join or status rejection. It carries the
// exact message shown to the requesting connection, mutates nothing and is
// never fatal.
type AdmissionError struct {
	Message string
}

func (e *AdmissionError) Error() string { return e.Message }

var (
	errInvalidCaptcha  = &AdmissionError{"Invalid captcha"}
	errInvalidUsername = &AdmissionError{"Invalid username. Use 1-20 printable characters."}
	errDuplicateName   = &AdmissionError{"Username already in use. Please choose a different name."}
	errRoomFull        = &AdmissionError{"Room is full"}
)

// Precondition failures: the message is dropped without a reply.
var (
	// ErrNotPending means the session is gone or already joined.
	ErrNotPending = errors.New("session not pending")
	// ErrNotActive means the session has not completed the join handshake.
	ErrNotActive = errors.New("session not active")
)

// ErrCameraCap rejects a camera enable at the configured maximum. The
// adapter formats the user-facing message with the actual limit.
var ErrCameraCap = errors.New("camera limit reached")
