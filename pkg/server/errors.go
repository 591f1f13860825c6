package server

import (
	"encoding/json"
	"net/http"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Message string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

const (
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeBackendError    = "BACKEND_ERROR"
	ErrCodeValidationError = "VALIDATION_ERROR"
	ErrCodeUnknownSink     = "UNKNOWN_SINK"
	ErrCodeInvalidBody     = "INVALID_BODY"
	ErrCodeInternal        = "INTERNAL_SERVER_ERROR"
)

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to write json response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, code, message string) {
	s.writeJSON(w, statusCode, APIError{
		Code:    code,
		Message: message,
	})
}

func (s *Server) writeErrorDetails(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	s.writeJSON(w, statusCode, APIError{
		Code:    code,
		Message: message,
		Details: details,
	})
}
