package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ivankudzin/ticketadmin/internal/apiclient"
	"github.com/ivankudzin/ticketadmin/internal/services/organizations"
	"github.com/ivankudzin/ticketadmin/internal/services/tickets"
	"github.com/ivankudzin/ticketadmin/internal/services/users"
	httperrors "github.com/ivankudzin/ticketadmin/internal/transport/http/errors"
)

var errInvalidJSON = errors.New("invalid json body")

// writeUpstreamError relays an upstream failure with its own status and
// code. Transport failures (status 0) become 502.
func writeUpstreamError(w http.ResponseWriter, err error) {
	apiErr, ok := apiclient.AsAPIError(err)
	if !ok {
		httperrors.WriteError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "upstream request failed")
		return
	}

	status := apiErr.Status
	if status == 0 {
		status = http.StatusBadGateway
	}
	code := strings.TrimSpace(apiErr.Code)
	if code == "" || code == "0" {
		code = "UPSTREAM_UNAVAILABLE"
	}
	httperrors.WriteError(w, status, code, apiErr.Message)
}

func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, organizations.ErrInvalidInput) ||
		errors.Is(err, tickets.ErrInvalidInput) ||
		errors.Is(err, users.ErrInvalidInput) {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid input")
		return
	}
	writeUpstreamError(w, err)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.WriteError(w, http.StatusBadRequest, code, message)
}

func writeProxyUnavailable(w http.ResponseWriter) {
	httperrors.WriteError(w, http.StatusInternalServerError, "PROXY_UNAVAILABLE", "admin proxy is not configured")
}

// decodeBody reads an optional JSON body into dst. An empty body leaves dst
// untouched. It reports false after answering 400.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody))
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "request body could not be read")
		return false
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return true
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "request body must be JSON")
		return false
	}
	return true
}
