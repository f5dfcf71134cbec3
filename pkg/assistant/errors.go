package assistant

import "errors"

// ErrInvalidInput marks client errors; the transports answer them with 400 / InvalidArgument.
var ErrInvalidInput = errors.New("invalid_input")

// InputError is a client input error with a user facing message.
type InputError struct {
	msg string
}

func (e InputError) Error() string { return e.msg }
func (e InputError) Unwrap() error { return ErrInvalidInput }

func newInputError(msg string) error {
	return InputError{msg: msg}
}

var (
	errPromptRequired = newInputError("Prompt is required.")
	errCodeRequired   = newInputError("Code is required.")
)
