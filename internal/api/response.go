package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Machine-readable error codes of the HTTP API
const (
	CodeNotFound   = "not_found"
	CodeValidation = "validation_error"
	CodeStore      = "store_error"
)

// ErrorResponse is the error body of every failed API request. Code is always
// set so clients can branch without parsing Error.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// RespondJSON writes data as a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("Failed to encode JSON response")
		}
	}
}

// NotFoundMessage is the wording shared by the HTTP API and the MCP tools,
// e.g. "Investigation ab12cd34 not found".
func NotFoundMessage(kind, id string) string {
	return fmt.Sprintf("%s %s not found", kind, id)
}

// RespondNotFound writes a 404 for an unknown record.
func RespondNotFound(w http.ResponseWriter, kind, id string) {
	RespondJSON(w, http.StatusNotFound, ErrorResponse{
		Error: NotFoundMessage(kind, id),
		Code:  CodeNotFound,
	})
}

// RespondStoreError logs a failed store query and writes a 500. The store
// error itself stays in the log.
func RespondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Store query failed")
	RespondJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: "failed to query the investigation store",
		Code:  CodeStore,
	})
}

// RespondValidationError writes field-level validation errors as a 422 response.
func RespondValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	RespondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "Validation failed",
		Code:    CodeValidation,
		Details: fieldErrors,
	})
}
