package pderror

import "github.com/pkg/errors"

// A Kind classifies the errors returned by podote.
type Kind string

const (
	// KindMalformed is used when an input is rejected before reaching the todo service.
	KindMalformed Kind = "malformed"
	// KindStorage is used for any failure of the underlying database.
	KindStorage Kind = "storage"
)

type (
	// An Error represents the error format that can be rendered by podote.
	Error struct {
		Kind       Kind `json:"-"`
		FieldError err  `json:"error"`
	}

	err struct {
		Tag     string `json:"tag,omitempty"`
		Message string `json:"message"`
	}
)

// KindOf returns the kind of err.
// Errors not created by this package are storage failures.
func KindOf(err error) Kind {
	if pderr, ok := errors.Cause(err).(*Error); ok {
		return pderr.Kind
	}
	return KindStorage
}

// Malformed returns a new malformed input Error with the given tag and message.
func Malformed(tag, message string) *Error {
	return &Error{Kind: KindMalformed, FieldError: err{Tag: tag, Message: message}}
}

// Error implements error interface.
func (e *Error) Error() string {
	if e.FieldError.Tag == "" {
		return e.FieldError.Message
	}
	return e.FieldError.Tag + ": " + e.FieldError.Message
}
