package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodeRateLimit     Code = "RATE_LIMITED"
	CodeTooLarge      Code = "PAYLOAD_TOO_LARGE"

	// Stock ledger rule violations.
	CodeInvalidQuantity        Code = "INVALID_QUANTITY"
	CodeInsufficientStock      Code = "INSUFFICIENT_STOCK"
	CodeOverRelease            Code = "OVER_RELEASE"
	CodeDuplicateStock         Code = "DUPLICATE_STOCK"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"
)

// Metadata is how a code surfaces over HTTP. DetailsAllowed gates whether
// Error.Details reaches the client.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	retryable = true
	details   = true
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {http.StatusBadRequest, !retryable, "validation failed", details},
	CodeNotFound:      {http.StatusNotFound, !retryable, "resource not found", !details},
	CodeConflict:      {http.StatusConflict, !retryable, "conflict detected", !details},
	CodeStateConflict: {http.StatusUnprocessableEntity, !retryable, "state transition disallowed", details},
	CodeIdempotency:   {http.StatusConflict, !retryable, "idempotency key reused", details},
	CodeInternal:      {http.StatusInternalServerError, retryable, "internal server error", !details},
	CodeDependency:    {http.StatusServiceUnavailable, retryable, "dependency unavailable", details},
	CodeRateLimit:     {http.StatusTooManyRequests, retryable, "rate limit exceeded", !details},
	CodeTooLarge:      {http.StatusRequestEntityTooLarge, !retryable, "request body too large", details},

	CodeInvalidQuantity:        {http.StatusBadRequest, !retryable, "invalid quantity", details},
	CodeInsufficientStock:      {http.StatusConflict, !retryable, "insufficient stock", details},
	CodeOverRelease:            {http.StatusConflict, !retryable, "release exceeds reserved quantity", details},
	CodeDuplicateStock:         {http.StatusConflict, !retryable, "stock already exists for product", details},
	CodeConcurrentModification: {http.StatusConflict, retryable, "stock was modified concurrently", details},
}

// MetadataFor falls back to CodeInternal for unknown codes.
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

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
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

// CodeOf returns the outermost code in err's chain, CodeInternal when none.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	for err != nil {
		var typed *Error
		if !stdErrors.As(err, &typed) {
			return false
		}
		if typed.code == code {
			return true
		}
		err = typed.cause
	}
	return false
}
