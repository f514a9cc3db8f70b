package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/agentloop/pkg/protocol"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("http: write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, protocol.ErrorResponse{Error: protocol.ErrorShape{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable,
	}})
}

// decodeBody reads a JSON body capped at maxBytes into v. On failure the
// error reply has already been written.
func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, protocol.ErrPayloadTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), nil)
			return false
		}
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, "invalid JSON: "+err.Error(), nil)
		return false
	}
	return true
}
