package handler

import (
	"encoding/json"
	"net/http"

	"github.com/anvie-labs/chat-orchestrator/internal/model"
)

// writeJSON renders v as the response body. Encoding failures are not
// recoverable once the status line has gone out.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders a request-level failure envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.ErrorResponse{Error: message})
}
