package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/corn-moisture/platform/internal/services"
)

type contextKey string

const contextClaimsKey contextKey = "claims"

// maxRequestBodySize caps JSON bodies at 1 MB.
const maxRequestBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// decodeJSON reads one JSON document from the request body. With strict set,
// unknown keys are rejected. Failures come back as *services.ValidationError.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, strict bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return services.NewValidationError("body", "Request body is required")
		}
		return services.NewValidationError("body", fmt.Sprintf("Invalid request body: %v", err))
	}
	return nil
}

// MessageResponse is the users service payload for messages and errors.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the data service error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
