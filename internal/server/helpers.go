package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/cwbudde/seqdesign/internal/config"
)

// maxConfigBytes bounds the size of a submitted run description
const maxConfigBytes = 1 << 20

// errorResponse is the body of every non-2xx API response
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// readConfig parses a YAML or JSON run description from the request body
func readConfig(w http.ResponseWriter, r *http.Request) (*config.Config, error) {
	body := http.MaxBytesReader(w, r.Body, maxConfigBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return config.Parse(data)
}
