package gen

import "fmt"

// Reason classifies a failed generation.
type Reason string

const (
	ReasonModelUnavailable Reason = "model_unavailable"
	ReasonGeneration       Reason = "generation"
	ReasonEmptyOutput      Reason = "empty_output"
	ReasonBusy             Reason = "busy"
	ReasonTimeout          Reason = "timeout"
)

// Error is the failure half of a Result. Message is safe to return to clients.
type Error struct {
	Reason  Reason
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.cause }

// Is matches errors by Reason, so errors.Is(err, ErrBusy) works for any busy result.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

// Sentinels for errors.Is.
var (
	ErrModelUnavailable = &Error{Reason: ReasonModelUnavailable, Message: "Model not loaded."}
	ErrEmptyOutput      = &Error{Reason: ReasonEmptyOutput, Message: "Empty response from model."}
	ErrBusy             = &Error{Reason: ReasonBusy, Message: "Generation queue is full, retry later."}
	ErrTimeout          = &Error{Reason: ReasonTimeout, Message: "Generation timed out."}
	ErrGeneration       = &Error{Reason: ReasonGeneration, Message: "Generation error."}
)

func generationError(cause error) *Error {
	return &Error{Reason: ReasonGeneration, Message: fmt.Sprintf("Generation error: %v", cause), cause: cause}
}

func timeoutError(cause error) *Error {
	return &Error{Reason: ReasonTimeout, Message: ErrTimeout.Message, cause: cause}
}

// Result is either a non-empty Text or an Err; never both.
type Result struct {
	Text string
	Err  *Error

	// Cached is set when the text came from the response cache.
	Cached bool
}

// OK reports whether the result carries text.
func (r Result) OK() bool { return r.Err == nil }

func success(text string) Result { return Result{Text: text} }

func failure(e *Error) Result { return Result{Err: e} }
