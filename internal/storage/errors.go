package storage

import (
	"errors"
	"fmt"
)

// ErrStorage matches every error produced by this package via errors.Is.
var ErrStorage = errors.New("storage error")

// Reason tells which part of the storage stack failed.
type Reason string

const (
	ReasonEngine        Reason = "engine"
	ReasonFilesystem    Reason = "filesystem"
	ReasonSchemaMissing Reason = "schema_missing"
	ReasonOffload       Reason = "offload"
)

type Error struct {
	Reason Reason
	Op     string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return e.Op
	default:
		return string(e.Reason)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrStorage }

// Wrap classifies err under reason; nil stays nil and storage errors are not re-wrapped.
func Wrap(reason Reason, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Reason: reason, Op: op, Err: err}
}

// Engine wraps a driver failure.
func Engine(op string, err error) error { return Wrap(ReasonEngine, op, err) }

// ReasonOf returns the reason of a storage error, or "" if err is not one.
func ReasonOf(err error) Reason {
	var se *Error
	if errors.As(err, &se) {
		return se.Reason
	}
	return ""
}
