package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Ayush-autviz/skin-sub000/internal/auth"
)

// =============================================================================
// Identity Middleware
// =============================================================================

// IdentityMiddleware extracts the caller's identity from the gateway header
// and makes it available on the request context.
//
// The service does not authenticate callers itself. The API gateway in front
// of it does, and forwards the verified user id in the X-User-ID header.
type IdentityMiddleware struct {
	logger *slog.Logger
}

// NewIdentityMiddleware creates a new identity middleware.
func NewIdentityMiddleware(logger *slog.Logger) *IdentityMiddleware {
	return &IdentityMiddleware{logger: logger}
}

// WithIdentity stores the gateway-provided user id in the request context
// when present, and continues regardless. Use on routes that work both with
// and without an identity (health, metrics, file serving).
func (m *IdentityMiddleware) WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(auth.UserIDHeader); id != "" {
			r = r.WithContext(auth.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireIdentity rejects requests that carry no caller identity with a 401
// JSON error. Must run after WithIdentity.
func (m *IdentityMiddleware) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserID(r.Context()) == "" {
			m.logger.Info("request without identity rejected",
				"path", r.URL.Path,
				"method", r.Method,
				"ip", getClientIP(r),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{
					"code":    "unauthorized",
					"message": "Missing caller identity.",
				},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(loggingMw.Handler, identityMw.WithIdentity, identityMw.RequireIdentity)
//	mux.Handle("POST /photos", stack(captureHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
