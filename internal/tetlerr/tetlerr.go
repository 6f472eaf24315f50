// Package tetlerr defines TinyETL's error taxonomy. The engine, connectors,
// protocols and transformer construct or wrap their failures here, so a
// caller can recover the Kind with errors.As or KindOf. The config-loading
// packages (etlconfig, yamlconfig, secrets) return plain fmt errors, which
// KindOf reports as DataTransfer. The CLI prints the error text and exits
// with status 1 whatever the Kind.
package tetlerr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories a transfer run can report.
type Kind string

const (
	Connection     Kind = "connection"
	SchemaInference Kind = "schema_inference"
	DataTransfer   Kind = "data_transfer"
	Configuration  Kind = "configuration"
	Transform      Kind = "transform"
	DataValidation Kind = "data_validation"
)

// Error pairs a Kind with a message and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error that wraps cause, preserving it for errors.Is/As.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func Connectionf(format string, args ...any) *Error { return New(Connection, format, args...) }
func SchemaInferencef(format string, args ...any) *Error {
	return New(SchemaInference, format, args...)
}
func DataTransferf(format string, args ...any) *Error { return New(DataTransfer, format, args...) }
func Configurationf(format string, args ...any) *Error { return New(Configuration, format, args...) }
func Transformf(format string, args ...any) *Error    { return New(Transform, format, args...) }
func DataValidationf(format string, args ...any) *Error {
	return New(DataValidation, format, args...)
}

// KindOf extracts the Kind of err if it (or something it wraps) is a *Error.
// Unrecognised errors are reported as DataTransfer, the taxonomy's catch-all
// for mid-run failures that did not originate from a TinyETL package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return DataTransfer
}
