package remote

import (
	"errors"
	"fmt"
)

// UnknownMessage is shown when the backend did not explain a failure.
const UnknownMessage = "Error desconocido"

// Kind classifies a failed remote call.
type Kind string

const (
	// KindNetwork: the request never produced a response.
	KindNetwork Kind = "network"
	// KindServer: the backend answered with a non-2xx status.
	KindServer Kind = "server"
	// KindDecode: a 2xx answer did not match the expected schema.
	KindDecode Kind = "decode"
)

// Error is the only error type returned by Client methods.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts the *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// UserMessage is the text to show for err: the backend's message when it sent
// one, UnknownMessage otherwise.
func UserMessage(err error) string {
	if re, ok := AsError(err); ok && re.Message != "" {
		return re.Message
	}
	return UnknownMessage
}

// Result is the tagged outcome of a remote call: either a typed value or an Error.
type Result[T any] struct {
	Value T
	Err   *Error
}

// Of builds a Result from a Client call. Errors that are not *Error are
// classified as network failures.
func Of[T any](v T, err error) Result[T] {
	if err == nil {
		return Result[T]{Value: v}
	}
	if re, ok := AsError(err); ok {
		return Result[T]{Err: re}
	}
	return Result[T]{Err: &Error{Kind: KindNetwork, Message: UnknownMessage, Err: err}}
}

func (r Result[T]) OK() bool { return r.Err == nil }

// Unpack converts back to Go's (value, error) pair.
func (r Result[T]) Unpack() (T, error) {
	if r.Err != nil {
		return r.Value, r.Err
	}
	return r.Value, nil
}
