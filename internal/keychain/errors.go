package keychain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Value, Optional and Set matches
// exactly one of these via errors.Is.
var (
	ErrNoValueForKey = errors.New("no value")
	ErrTypeMismatch  = errors.New("type mismatch")
	ErrBackend       = errors.New("keychain error")
)

// Error describes a failed keychain operation.
type Error struct {
	Kind   error  // ErrNoValueForKey, ErrTypeMismatch or ErrBackend
	Key    string // logical key the operation was for
	Status Status // backend status, zero unless the backend reported a failure
	Err    error  // underlying codec error, if any
}

func (e *Error) Error() string {
	switch {
	case e.Kind == ErrBackend:
		return fmt.Sprintf("%s for key %q: %s (%d)", e.Kind, e.Key, e.Status, int32(e.Status))
	case e.Err != nil:
		return fmt.Sprintf("%s for key %q: %v", e.Kind, e.Key, e.Err)
	default:
		return fmt.Sprintf("%s for key %q", e.Kind, e.Key)
	}
}

// Is matches the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func noValueForKey(key string) error {
	return &Error{Kind: ErrNoValueForKey, Key: key}
}

func typeMismatch(key string, err error) error {
	return &Error{Kind: ErrTypeMismatch, Key: key, Err: err}
}

func backendError(key string, status Status) error {
	return &Error{Kind: ErrBackend, Key: key, Status: status}
}

// IsNotFound reports whether err is a NoValueForKey error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoValueForKey)
}

// IsTransient reports whether err is a backend error whose status may clear
// if the whole operation is tried again later.
func IsTransient(err error) bool {
	var kerr *Error
	if !errors.As(err, &kerr) || kerr.Kind != ErrBackend {
		return false
	}
	return kerr.Status.Transient()
}
