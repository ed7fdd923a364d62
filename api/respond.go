package api

import (
	"encoding/json"
	"net/http"
)

const maxBodyBytes = 1 << 20

type errorDetail struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

func errorBody(message, details string) errorResponse {
	return errorResponse{Error: errorDetail{Message: message, Details: details}}
}

// decodeJSON reads a size-limited JSON body that must not carry unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// respondWithError is a helper to send JSON error responses.
func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("API Error", "status", status, "message", message, "path", r.URL.Path, "error", err)
	} else {
		s.logger.Warn("API request rejected", "status", status, "message", message, "path", r.URL.Path, "error", err)
	}
	respondWithJSONRaw(w, status, errorBody(message, details))
}

// respondWithJSON is a helper to send JSON responses.
func (s *Server) respondWithJSON(w http.ResponseWriter, _ *http.Request, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("Failed to marshal JSON response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"Failed to marshal response"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// respondWithJSONRaw is the logger-free variant used by middleware.
func respondWithJSONRaw(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"Critical: Failed to marshal error response"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
