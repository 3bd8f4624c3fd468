package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/julianstephens/habitd/internal/errors"
	"github.com/julianstephens/habitd/internal/logger"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

// writeError renders err as {"error": msg}. Server faults are logged with
// their cause and reported generically.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	body := errorResponse{Error: apperrors.PublicMessage(err)}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", requestIDFrom(r.Context()), "error", err)
	case status == http.StatusUnauthorized:
		body.Details = unauthenticatedDetails(err)
	}

	writeJSON(w, status, body)
}

// unauthenticatedDetails surfaces why verification failed.
func unauthenticatedDetails(err error) string {
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) && domainErr.Err != nil {
		return domainErr.Err.Error()
	}
	return ""
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	// An empty body decodes as the zero value.
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
