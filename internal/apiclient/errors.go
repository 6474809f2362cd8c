package apiclient

import (
	"errors"
	"fmt"
	"strconv"
)

// APIError is returned for every upstream failure the client can attribute
// to a request: a non-2xx status, an envelope with success=false, or a
// transport failure (Status 0).
type APIError struct {
	Status  int
	Code    string
	Message string
	// Body is the decoded error payload, nil when it was not valid JSON.
	Body any
	Err  error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsAPIError reports whether v is, or wraps, an *APIError. It accepts any
// value so callers can inspect recovered panics or decoded payloads safely.
func IsAPIError(v any) bool {
	switch typed := v.(type) {
	case nil:
		return false
	case *APIError:
		return typed != nil
	case error:
		var apiErr *APIError
		return errors.As(typed, &apiErr) && apiErr != nil
	default:
		return false
	}
}

func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr, true
	}
	return nil, false
}

func requestFailed(status int, body any) *APIError {
	return &APIError{
		Status:  status,
		Code:    strconv.Itoa(status),
		Message: fmt.Sprintf("Request failed: %d", status),
		Body:    body,
	}
}

func networkError(err error) *APIError {
	return &APIError{
		Status:  0,
		Code:    "0",
		Message: fmt.Sprintf("Network request failed: %v", err),
		Err:     err,
	}
}
