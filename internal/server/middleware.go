package server

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitd/internal/auth"
	"github.com/julianstephens/habitd/internal/constants"
	apperrors "github.com/julianstephens/habitd/internal/errors"
	"github.com/julianstephens/habitd/internal/logger"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// accessLog assigns a request id and logs one line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"request_id", id,
		)
	})
}

// cors allows credentialed requests from the configured origins and
// answers preflight requests before authentication runs.
func cors(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := slices.Contains(allowedOrigins, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || slices.Contains(allowedOrigins, origin)) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				h.Set("Access-Control-Expose-Headers", requestIDHeader)
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate requires a bearer token and stores the verified identity
// in the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: constants.MsgMissingAuthHeader})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: constants.MsgUnauthenticated, Details: constants.MsgInvalidAuthHeader})
			return
		}

		id, err := s.verifier.Verify(r.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			logger.Warn("token verification failed", "path", r.URL.Path, "request_id", requestIDFrom(r.Context()), "error", err)
			writeError(w, r, apperrors.Wrap(apperrors.ErrUnauthenticated, constants.MsgUnauthenticated, causeOf(err)))
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// causeOf strips our own Unauthenticated wrapper so details carry the
// verifier's reason rather than a repeated "Unauthenticated".
func causeOf(err error) error {
	if domainErr, ok := err.(*apperrors.Error); ok && domainErr.Err != nil {
		return domainErr.Err
	}
	return err
}

// syncUser ensures a user row exists. Failures are logged and the request
// continues.
func (s *Server) syncUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := auth.FromContext(r.Context()); ok {
			if err := s.habits.SyncUser(r.Context(), id.UserID, id.Email); err != nil {
				logger.Error("user sync failed", "user", id.UserID, "request_id", requestIDFrom(r.Context()), "error", err)
			}
		}
		next.ServeHTTP(w, r)
	})
}
