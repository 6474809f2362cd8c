package errors

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RateLimitError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	RetryAfterSec int64  `json:"retry_after_sec"`
}

// Envelope is the response shape shared with the upstream services, so the
// api client can unwrap local proxy responses the same way.
type Envelope struct {
	Success bool `json:"success"`
	Result  any  `json:"result"`
	Errors  any  `json:"errors,omitempty"`
}

func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteSuccess(w http.ResponseWriter, status int, result any) {
	Write(w, status, Envelope{Success: true, Result: result})
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	Write(w, status, Envelope{Errors: []APIError{{Code: code, Message: message}}})
}

func WriteRateLimited(w http.ResponseWriter, retryAfterSec int64) {
	if retryAfterSec > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSec, 10))
	}
	Write(w, http.StatusTooManyRequests, Envelope{Errors: []RateLimitError{{
		Code:          "RATE_LIMITED",
		Message:       "too many admin actions, slow down",
		RetryAfterSec: retryAfterSec,
	}}})
}
