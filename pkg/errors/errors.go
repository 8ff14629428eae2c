package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorises an application error. Every Kind maps to exactly one
// HTTP status through StatusCode.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindAccountLocked
	KindEmailVerificationRequired
	KindAccountInactive
	KindForbidden
	KindPaymentRequired
	KindValidation
	KindConflict
	KindNotFound
	KindRateLimited
)

// StatusCode returns the HTTP status for the kind.
func (k Kind) StatusCode() int {
	switch k {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAccountLocked:
		return http.StatusLocked
	case KindEmailVerificationRequired, KindAccountInactive, KindForbidden:
		return http.StatusForbidden
	case KindPaymentRequired:
		return http.StatusPaymentRequired
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the stable machine readable category sent to clients.
func (k Kind) Code() string {
	switch k {
	case KindAuthentication:
		return "AUTHENTICATION_ERROR"
	case KindAccountLocked:
		return "ACCOUNT_LOCKED"
	case KindEmailVerificationRequired:
		return "EMAIL_VERIFICATION_REQUIRED"
	case KindAccountInactive:
		return "ACCOUNT_INACTIVE"
	case KindForbidden:
		return "FORBIDDEN"
	case KindPaymentRequired:
		return "PAYMENT_REQUIRED"
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindConflict:
		return "CONFLICT"
	case KindNotFound:
		return "NOT_FOUND"
	case KindRateLimited:
		return "RATE_LIMITED"
	default:
		return "INTERNAL_ERROR"
	}
}

func (k Kind) String() string {
	return k.Code()
}

// AppError represents an application error
type AppError struct {
	Kind    Kind     `json:"-"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
	Err     error    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode satisfies the interface checked by the error middleware.
func (e *AppError) StatusCode() int {
	return e.Kind.StatusCode()
}

// WithCode overrides the default machine readable code of the kind.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails attaches itemized reasons, e.g. failed password rules.
func (e *AppError) WithDetails(details ...string) *AppError {
	e.Details = append(e.Details, details...)
	return e
}

func newError(kind Kind, message string, err error) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    kind.Code(),
		Message: message,
		Err:     err,
	}
}

// Error constructors
func Authentication(message string) *AppError {
	return newError(KindAuthentication, message, nil)
}

func AccountLocked(message string) *AppError {
	return newError(KindAccountLocked, message, nil)
}

func EmailVerificationRequired(message string) *AppError {
	return newError(KindEmailVerificationRequired, message, nil)
}

func AccountInactive(message string) *AppError {
	return newError(KindAccountInactive, message, nil)
}

func Forbidden(message string) *AppError {
	return newError(KindForbidden, message, nil)
}

func PaymentRequired(message string) *AppError {
	return newError(KindPaymentRequired, message, nil)
}

func Validation(message string, details ...string) *AppError {
	return newError(KindValidation, message, nil).WithDetails(details...)
}

func Conflict(message string) *AppError {
	return newError(KindConflict, message, nil)
}

func NotFound(resource string, err error) *AppError {
	return newError(KindNotFound, fmt.Sprintf("%s not found", resource), err)
}

// InvalidToken is reported for unknown, expired or already consumed
// invitation, reset and verification tokens.
func InvalidToken(message string) *AppError {
	return newError(KindNotFound, message, nil).WithCode("INVALID_TOKEN")
}

func RateLimited(message string) *AppError {
	return newError(KindRateLimited, message, nil)
}

func Internal(err error) *AppError {
	return newError(KindInternal, "internal server error", err)
}

// KindOf returns the kind of err, KindInternal when err carries no AppError.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries an AppError of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// As unwraps err into an AppError.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}
