package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dentaflow/clinic-platform/internal/backend"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeClassifiedError maps a backend error kind onto an HTTP status so the
// front end can distinguish "no slots", "no providers assigned", and "the
// booking service is down".
func writeClassifiedError(w http.ResponseWriter, err error) {
	kind := backend.KindOf(err)

	status := http.StatusBadGateway
	switch kind {
	case backend.KindValidation:
		status = http.StatusUnprocessableEntity
	case backend.KindConflict:
		status = http.StatusConflict
	case backend.KindUnavailable:
		status = http.StatusServiceUnavailable
	case backend.KindTimeout:
		status = http.StatusGatewayTimeout
	case backend.KindAuth:
		status = http.StatusUnauthorized
	case backend.KindConfiguration:
		status = http.StatusConflict
	}

	resp := errorResponse{Error: err.Error(), Kind: kind.String()}
	var be *backend.Error
	if errors.As(err, &be) {
		if be.Message != "" {
			resp.Error = be.Message
		}
		resp.Fields = be.Fields
	}
	writeJSON(w, status, resp)
}
