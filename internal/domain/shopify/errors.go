// Package shopify provides domain types for the Shopify Admin API integration.
package shopify

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Standard domain errors.
var (
	ErrThrottled          = errors.New("API query cost throttled")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrResourceNotFound   = errors.New("resource not found")
	ErrInvalidRequest     = errors.New("invalid request parameters")
	ErrServiceUnavailable = errors.New("Shopify service temporarily unavailable")
)

// ErrorCode represents Shopify GraphQL error extension codes.
type ErrorCode string

const (
	CodeThrottled       ErrorCode = "THROTTLED"
	CodeAccessDenied    ErrorCode = "ACCESS_DENIED"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeInternalError   ErrorCode = "INTERNAL_SERVER_ERROR"
	CodeParseError      ErrorCode = "GRAPHQL_PARSE_FAILED"
	CodeValidation      ErrorCode = "GRAPHQL_VALIDATION_FAILED"
	CodeMaxCostExceeded ErrorCode = "MAX_COST_EXCEEDED"
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// APIError represents a failed Admin API call: either a non-2xx HTTP
// status or a GraphQL "errors" payload.
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	RequestID  string    `json:"request_id,omitempty"`
	StatusCode int       `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	code := e.Code.String()
	if code == "" {
		code = fmt.Sprintf("http %d", e.StatusCode)
	}
	if e.RequestID != "" {
		return fmt.Sprintf("shopify [%s]: %s (request_id: %s)", code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("shopify [%s]: %s", code, e.Message)
}

// Is implements errors.Is for APIError.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrThrottled:
		return e.Code == CodeThrottled || e.StatusCode == http.StatusTooManyRequests
	case ErrUnauthorized:
		return e.Code == CodeAccessDenied || e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrResourceNotFound:
		return e.Code == CodeNotFound || e.StatusCode == http.StatusNotFound
	case ErrInvalidRequest:
		return e.Code == CodeParseError || e.Code == CodeValidation || e.Code == CodeMaxCostExceeded ||
			e.StatusCode == http.StatusBadRequest
	case ErrServiceUnavailable:
		return e.Code == CodeInternalError || e.StatusCode >= 500
	default:
		return false
	}
}

// NewAPIError creates a new APIError with the given parameters.
func NewAPIError(code ErrorCode, message string, statusCode int) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// GraphQLError is one entry of a GraphQL "errors" array.
type GraphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// FromGraphQL folds a GraphQL errors array into one APIError. The code of
// the first error wins; messages are joined.
func FromGraphQL(errs []GraphQLError, statusCode int, requestID string) *APIError {
	if len(errs) == 0 {
		return nil
	}
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.Message)
	}
	return &APIError{
		Code:       ErrorCode(errs[0].Extensions.Code),
		Message:    strings.Join(messages, "; "),
		RequestID:  requestID,
		StatusCode: statusCode,
	}
}

// ErrorCategory classifies errors into categories.
type ErrorCategory string

const (
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryRateLimit      ErrorCategory = "rate_limit"
	CategoryServer         ErrorCategory = "server"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryValidation     ErrorCategory = "validation"
	CategoryUnknown        ErrorCategory = "unknown"
)

// Category returns the category of this error.
func (e *APIError) Category() ErrorCategory {
	switch {
	case errors.Is(e, ErrUnauthorized):
		return CategoryAuthentication
	case errors.Is(e, ErrThrottled):
		return CategoryRateLimit
	case errors.Is(e, ErrServiceUnavailable):
		return CategoryServer
	case errors.Is(e, ErrResourceNotFound):
		return CategoryNotFound
	case errors.Is(e, ErrInvalidRequest):
		return CategoryValidation
	default:
		return CategoryUnknown
	}
}
