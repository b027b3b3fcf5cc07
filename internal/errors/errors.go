// internal/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

type ErrorType string

const (
	ErrorTypeNotFound               ErrorType = "NOT_FOUND"
	ErrorTypeDuplicateName          ErrorType = "DUPLICATE_NAME"
	ErrorTypeIOFailure              ErrorType = "IO_FAILURE"
	ErrorTypeCorruption             ErrorType = "CORRUPTION"
	ErrorTypeConcurrentModification ErrorType = "CONCURRENT_MODIFICATION"
	ErrorTypeValidation             ErrorType = "VALIDATION"
)

// Sentinels for errors.Is. Any *Error of the same type matches them.
var (
	ErrNotFound               = &Error{Type: ErrorTypeNotFound}
	ErrDuplicateName          = &Error{Type: ErrorTypeDuplicateName}
	ErrIOFailure              = &Error{Type: ErrorTypeIOFailure}
	ErrCorruption             = &Error{Type: ErrorTypeCorruption}
	ErrConcurrentModification = &Error{Type: ErrorTypeConcurrentModification}
	ErrValidation             = &Error{Type: ErrorTypeValidation}
)

// Error carries the failure kind plus the operation and identifier it happened on.
type Error struct {
	Type    ErrorType `json:"type"`
	Op      string    `json:"op,omitempty"`
	Key     string    `json:"key,omitempty"`
	Message string    `json:"message,omitempty"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Key != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(e.Key)
	}
	msg := e.Message
	if msg == "" && e.Err == nil {
		msg = strings.ToLower(strings.ReplaceAll(string(e.Type), "_", " "))
	}
	if msg != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(msg)
	}
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels: a target with only Type set matches any error of that type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" || t.Key != "" || t.Message != "" {
		return e == t
	}
	return e.Type == t.Type
}

func NotFound(op, key string) *Error {
	return &Error{Type: ErrorTypeNotFound, Op: op, Key: key}
}

func DuplicateName(op, key string) *Error {
	return &Error{Type: ErrorTypeDuplicateName, Op: op, Key: key}
}

func IOFailure(op, key string, err error) *Error {
	return &Error{Type: ErrorTypeIOFailure, Op: op, Key: key, Err: err}
}

func Corruption(op, key string, err error) *Error {
	return &Error{Type: ErrorTypeCorruption, Op: op, Key: key, Err: err}
}

func ConcurrentModification(op, key string) *Error {
	return &Error{Type: ErrorTypeConcurrentModification, Op: op, Key: key}
}

func Validation(op, key, message string) *Error {
	return &Error{Type: ErrorTypeValidation, Op: op, Key: key, Message: message}
}

// Wrap adds op/key context at a layer boundary. The inner failure kind is kept;
// errors from outside the taxonomy are reported as IO failures.
func Wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Type: KindOf(err), Op: op, Key: key, Err: err}
}

// Wrapf is Wrap with a formatted key.
func Wrapf(op string, err error, format string, args ...any) error {
	return Wrap(op, fmt.Sprintf(format, args...), err)
}

// KindOf reports the outermost failure kind in the chain.
func KindOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeIOFailure
}

// Is reports whether err carries failure kind t anywhere in its chain.
func Is(err error, t ErrorType) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Type == t {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// KeyOf returns the innermost identifier recorded in the chain.
func KeyOf(err error) string {
	key := ""
	for err != nil {
		if e, ok := err.(*Error); ok && e.Key != "" {
			key = e.Key
		}
		err = stderrors.Unwrap(err)
	}
	return key
}
