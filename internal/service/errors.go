package service

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every *Error matches exactly one of them with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnsupportedType   = errors.New("unsupported challenge type")
	ErrExternalService   = errors.New("external service failure")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrBatchInFlight     = errors.New("progress update already in flight")

	ErrUserNotFound = &Error{Kind: ErrNotFound, Message: "user not found", UserMessage: "We couldn't find your account."}
)

type Error struct {
	Kind        error
	Message     string
	UserMessage string
	Violations  []string
	Err         error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, userMessage, format string, args ...interface{}) *Error {
	return &Error{
		Kind:        kind,
		Message:     fmt.Sprintf(format, args...),
		UserMessage: userMessage,
	}
}

func validationError(violations []string) *Error {
	return &Error{
		Kind:        ErrValidation,
		Message:     strings.Join(violations, "; "),
		UserMessage: "Please check your input: " + strings.Join(violations, "; ") + ".",
		Violations:  violations,
	}
}

func conflictError(userMessage string) *Error {
	return &Error{Kind: ErrConflict, Message: userMessage, UserMessage: userMessage}
}

func externalError(operation string, err error) *Error {
	return &Error{
		Kind:        ErrExternalService,
		Message:     operation,
		UserMessage: userMessages[0].message,
		Err:         err,
	}
}

var userMessages = []struct {
	kind    error
	message string
}{
	{ErrExternalService, "A service we depend on is unavailable. Please try again later."},
	{ErrValidation, "The challenge details are invalid."},
	{ErrNotFound, "We couldn't find that challenge."},
	{ErrConflict, "That action isn't possible for this challenge right now."},
	{ErrInsufficientFunds, "You don't have enough tokens for this stake."},
	{ErrUnsupportedType, "Progress tracking isn't available for this challenge type yet."},
	{ErrUnauthenticated, "Please sign in again."},
	{ErrBatchInFlight, "Your progress is already being refreshed."},
}

// UserMessage returns the text shown to the user for err.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.UserMessage != "" {
		return e.UserMessage
	}

	for _, m := range userMessages {
		if errors.Is(err, m.kind) {
			return m.message
		}
	}

	return "Something went wrong. Please try again."
}
