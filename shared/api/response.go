// shared/api/response.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
)

// Error codes carried in the "error" field of JSONErrorResponse.
const (
	CodeValidation     = "validation_error"
	CodeInvalidRequest = "invalid_request"
	CodeNotFound       = "not_found"
	CodeMatchClosed    = "match_closed"
	CodeInvalidSlot    = "invalid_slot"
	CodeSlotTaken      = "slot_taken"
	CodeUnauthorized   = "unauthorized"
	CodeForbidden      = "forbidden"
	CodeRateLimited    = "rate_limited"
	CodeInternal       = "internal_error"
)

// JSONErrorResponse defines a standard structure for API error responses.
type JSONErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Field   string `json:"field,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response with the given status, error code and message.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteErrorResponse(w, JSONErrorResponse{Error: code, Message: message, Code: status})
}

// WriteErrorResponse writes resp using resp.Code as the HTTP status.
func WriteErrorResponse(w http.ResponseWriter, resp JSONErrorResponse) {
	if err := WriteJSON(w, resp.Code, resp); err != nil {
		log.Printf("ERROR: Failed to write JSON error response: %v", err)
	}
}

// WriteBadRequest convenience function
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidRequest, message)
}

// WriteNotFound convenience function
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// WriteInternalServerError convenience function
func WriteInternalServerError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternal, message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}
