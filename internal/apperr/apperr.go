// Package apperr is the error taxonomy shared by the service, catalog and HTTP
// layers. Every failure a caller can act on carries a Code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "validation"
	CodeInvalidTransition Code = "invalid_transition"
	CodeUniqueness        Code = "uniqueness_violation"
	CodeReferential       Code = "referential_integrity"
	CodeCrossTenant       Code = "cross_tenant_access"
	CodeForbidden         Code = "forbidden"
	CodeNotFound          Code = "not_found"
	CodeInternal          Code = "internal"
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error. A nil err yields nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf reports the code of the outermost *Error in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// IsCoded reports whether err already carries a taxonomy code.
func IsCoded(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeInvalidTransition, CodeUniqueness:
		return http.StatusConflict
	case CodeReferential:
		return http.StatusUnprocessableEntity
	case CodeCrossTenant, CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
