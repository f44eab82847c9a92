package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInvalidState      Code = "INVALID_STATE"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeDuplicateOrder    Code = "DUPLICATE_ORDER"
	CodeConflict          Code = "CONFLICT"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

// Metadata is how a code surfaces over HTTP and whether a consumer should
// retry a message that failed with it.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:        {http.StatusBadRequest, false, "validation failed", true},
	CodeUnauthorized:      {http.StatusUnauthorized, false, "authentication required", false},
	CodeForbidden:         {http.StatusForbidden, false, "access denied", false},
	CodeNotFound:          {http.StatusNotFound, false, "resource not found", false},
	CodeInvalidState:      {http.StatusUnprocessableEntity, false, "operation not allowed in current state", true},
	CodeInsufficientStock: {http.StatusConflict, false, "insufficient stock", true},
	CodeDuplicateOrder:    {http.StatusConflict, false, "duplicate order", false},
	CodeConflict:          {http.StatusConflict, true, "conflict detected", false},
	CodeInternal:          {http.StatusInternalServerError, true, "internal server error", false},
	CodeDependency:        {http.StatusServiceUnavailable, true, "dependency unavailable", true},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// InsufficientStock names the products whose reservation would oversell them.
func InsufficientStock(productNames []string) *Error {
	msg := "The following products are unavailable given their respective requested quantities: " +
		strings.Join(productNames, ", ") + "."
	return New(CodeInsufficientStock, msg).WithDetails(map[string]any{"products": productNames})
}
