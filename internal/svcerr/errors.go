// Package svcerr provides the unified structured-error shape returned across
// the HTTP surface and logged by the background engines: a stable code, an
// HTTP status, and an optional detail map, grounded on the teacher's own
// infrastructure/errors package but recut for the flywheel domain.
package svcerr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	// Authentication errors (1xxx)
	ErrCodeUnauthorized     ErrorCode = "AUTH_1001"
	ErrCodeInvalidToken     ErrorCode = "AUTH_1002"
	ErrCodeTokenExpired     ErrorCode = "AUTH_1003"
	ErrCodeInvalidSignature ErrorCode = "AUTH_1004"

	// Authorization errors (2xxx)
	ErrCodeForbidden         ErrorCode = "AUTHZ_2001"
	ErrCodeInsufficientFunds ErrorCode = "AUTHZ_2002"
	ErrCodeOwnershipRequired ErrorCode = "AUTHZ_2003"

	// Validation errors (3xxx)
	ErrCodeInvalidInput     ErrorCode = "VAL_3001"
	ErrCodeMissingParameter ErrorCode = "VAL_3002"
	ErrCodeInvalidFormat    ErrorCode = "VAL_3003"
	ErrCodeOutOfRange       ErrorCode = "VAL_3004"

	// Resource errors (4xxx)
	ErrCodeNotFound      ErrorCode = "RES_4001"
	ErrCodeAlreadyExists ErrorCode = "RES_4002"
	ErrCodeConflict      ErrorCode = "RES_4003"

	// Service errors (5xxx)
	ErrCodeInternal          ErrorCode = "SVC_5001"
	ErrCodeDatabaseError     ErrorCode = "SVC_5002"
	ErrCodeChainError        ErrorCode = "SVC_5003"
	ErrCodeExternalAPI       ErrorCode = "SVC_5004"
	ErrCodeTimeout           ErrorCode = "SVC_5005"
	ErrCodeRateLimitExceeded ErrorCode = "SVC_5006"

	// Signer errors (6xxx)
	ErrCodeSigningFailed      ErrorCode = "SIGNER_6001"
	ErrCodeVerificationFailed ErrorCode = "SIGNER_6002"
	ErrCodeSignerUnreachable  ErrorCode = "SIGNER_6003"

	// Flywheel domain errors (7xxx)
	ErrCodeCycleLocked        ErrorCode = "FLYWHEEL_7001"
	ErrCodeTradeRejected      ErrorCode = "FLYWHEEL_7002"
	ErrCodeNothingClaimable   ErrorCode = "FLYWHEEL_7003"
	ErrCodeDepositNotDetected ErrorCode = "FLYWHEEL_7004"
)

// ServiceError represents a structured error with code, message, and HTTP status
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails adds additional details to the error
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new ServiceError
func New(code ErrorCode, message string, httpStatus int) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error with a ServiceError
func Wrap(code ErrorCode, message string, httpStatus int, err error) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Authentication errors

func Unauthorized(message string) *ServiceError {
	return New(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func InvalidToken(err error) *ServiceError {
	return Wrap(ErrCodeInvalidToken, "invalid authentication token", http.StatusUnauthorized, err)
}

func TokenExpired() *ServiceError {
	return New(ErrCodeTokenExpired, "authentication token has expired", http.StatusUnauthorized)
}

func InvalidSignature(err error) *ServiceError {
	return Wrap(ErrCodeInvalidSignature, "invalid wallet signature", http.StatusUnauthorized, err)
}

// Authorization errors

func Forbidden(message string) *ServiceError {
	return New(ErrCodeForbidden, message, http.StatusForbidden)
}

func InsufficientFunds(required, available string) *ServiceError {
	return New(ErrCodeInsufficientFunds, "insufficient funds", http.StatusPaymentRequired).
		WithDetails("required", required).
		WithDetails("available", available)
}

func OwnershipRequired(resource string) *ServiceError {
	return New(ErrCodeOwnershipRequired, "ownership verification required", http.StatusForbidden).
		WithDetails("resource", resource)
}

// Validation errors

func InvalidInput(field, reason string) *ServiceError {
	return New(ErrCodeInvalidInput, "invalid input", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

func MissingParameter(param string) *ServiceError {
	return New(ErrCodeMissingParameter, "missing required parameter", http.StatusBadRequest).
		WithDetails("parameter", param)
}

func InvalidFormat(field, expected string) *ServiceError {
	return New(ErrCodeInvalidFormat, "invalid format", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("expected", expected)
}

func OutOfRange(field string, minValue, maxValue interface{}) *ServiceError {
	return New(ErrCodeOutOfRange, "value out of range", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("min", minValue).
		WithDetails("max", maxValue)
}

// Resource errors

func NotFound(resource, id string) *ServiceError {
	return New(ErrCodeNotFound, "resource not found", http.StatusNotFound).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func AlreadyExists(resource, id string) *ServiceError {
	return New(ErrCodeAlreadyExists, "resource already exists", http.StatusConflict).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func Conflict(message string) *ServiceError {
	return New(ErrCodeConflict, message, http.StatusConflict)
}

// Service errors

func Internal(message string, err error) *ServiceError {
	return Wrap(ErrCodeInternal, message, http.StatusInternalServerError, err)
}

func DatabaseError(operation string, err error) *ServiceError {
	return Wrap(ErrCodeDatabaseError, "database operation failed", http.StatusInternalServerError, err).
		WithDetails("operation", operation)
}

func ChainError(operation string, err error) *ServiceError {
	return Wrap(ErrCodeChainError, "chain operation failed", http.StatusServiceUnavailable, err).
		WithDetails("operation", operation)
}

func ExternalAPIError(service string, err error) *ServiceError {
	return Wrap(ErrCodeExternalAPI, "external API call failed", http.StatusBadGateway, err).
		WithDetails("service", service)
}

func Timeout(operation string) *ServiceError {
	return New(ErrCodeTimeout, "operation timed out", http.StatusGatewayTimeout).
		WithDetails("operation", operation)
}

func RateLimitExceeded(limit int, window string) *ServiceError {
	return New(ErrCodeRateLimitExceeded, "rate limit exceeded", http.StatusTooManyRequests).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// Signer errors

func SigningFailed(err error) *ServiceError {
	return Wrap(ErrCodeSigningFailed, "signing failed", http.StatusInternalServerError, err)
}

func VerificationFailed(err error) *ServiceError {
	return Wrap(ErrCodeVerificationFailed, "verification failed", http.StatusUnauthorized, err)
}

func SignerUnreachable(err error) *ServiceError {
	return Wrap(ErrCodeSignerUnreachable, "signer gateway unreachable", http.StatusServiceUnavailable, err)
}

// Flywheel domain errors

func CycleLocked(tokenID string) *ServiceError {
	return New(ErrCodeCycleLocked, "token cycle is locked by another operation", http.StatusConflict).
		WithDetails("token_id", tokenID)
}

func TradeRejected(reason string) *ServiceError {
	return New(ErrCodeTradeRejected, "trade rejected", http.StatusUnprocessableEntity).
		WithDetails("reason", reason)
}

func NothingClaimable(wallet string) *ServiceError {
	return New(ErrCodeNothingClaimable, "no claimable positions", http.StatusNotFound).
		WithDetails("wallet", wallet)
}

func DepositNotDetected(address string) *ServiceError {
	return New(ErrCodeDepositNotDetected, "expected deposit not yet detected", http.StatusNotFound).
		WithDetails("address", address)
}

// Helper functions

// IsServiceError checks if an error is a ServiceError
func IsServiceError(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr)
}

// GetServiceError extracts a ServiceError from an error chain
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// GetHTTPStatus returns the HTTP status code for an error
func GetHTTPStatus(err error) int {
	if serviceErr := GetServiceError(err); serviceErr != nil {
		return serviceErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
