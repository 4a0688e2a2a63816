package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/homelink/homelink-core/internal/directory"
	"github.com/homelink/homelink-core/internal/guard"
	"github.com/homelink/homelink-core/internal/identity"
	"github.com/homelink/homelink-core/internal/session"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	// ctxKeyRequestID is the context key for the request ID.
	ctxKeyRequestID contextKey = "request_id"

	// ctxKeyCaller is the context key for the authenticated caller.
	ctxKeyCaller contextKey = "caller"
)

// caller is the per-request view of an authenticated member. Account is
// nil when the directory lookup failed; the request is still admitted to
// endpoints that require no role, mirroring the degraded session rules.
type caller struct {
	Identity identity.Identity
	Account  *directory.Account
}

// Role returns the directory-confirmed role, or "" when unresolved.
func (c *caller) Role() directory.Role {
	if c.Account == nil {
		return ""
	}
	return c.Account.Role
}

// LinkingID returns the caller's household linking id, or "" when the
// profile could not be resolved.
func (c *caller) LinkingID() string {
	if c.Account == nil {
		return ""
	}
	return c.Account.LinkingID
}

// callerFrom extracts the authenticated caller from a request context.
func callerFrom(ctx context.Context) (*caller, bool) {
	c, ok := ctx.Value(ctxKeyCaller).(*caller)
	return c, ok
}

// requestIDMiddleware generates a unique request ID for each request.
// If the client sends an X-Request-ID header, it is used; otherwise one is generated.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each HTTP request with method, path, status, and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
	})
}

// recoveryMiddleware catches panics in handlers and returns a 500 response.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered in HTTP handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", r.Context().Value(ctxKeyRequestID),
				)
				writeInternalError(w, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles Cross-Origin Resource Sharing headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.isAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", joinOrDefault(s.cfg.CORS.AllowedMethods, "GET, POST, PUT, PATCH, DELETE, OPTIONS"))
			w.Header().Set("Access-Control-Allow-Headers", joinOrDefault(s.cfg.CORS.AllowedHeaders, "Authorization, Content-Type, X-Request-ID"))
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// maxRequestBodySize is the maximum allowed request body size (1 MB).
const maxRequestBodySize = 1 << 20

// bodySizeLimitMiddleware limits the size of incoming request bodies to prevent
// denial-of-service attacks via oversized payloads.
func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates the bearer token and resolves the caller's
// directory profile for the request. The role claim inside the token is
// never trusted: the directory is the authority, re-read per request.
// A directory lookup failure leaves Account nil rather than failing the
// request; role-gated routes then reject it downstream.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeUnauthorized(w, "missing bearer token")
			return
		}

		claims, err := identity.ParseToken(token, s.authCfg.JWT.Secret)
		if err != nil {
			writeUnauthorized(w, "invalid or expired token")
			return
		}

		c := &caller{Identity: identity.Identity{
			AccountID: claims.Subject,
			Email:     claims.Email,
		}}

		account, err := s.dir.Get(r.Context(), claims.Subject)
		switch {
		case err == nil:
			c.Account = account
		case directory.IsNotFound(err):
			// Token for an account whose profile is gone: the holder is
			// no longer a member of any household.
			writeUnauthorized(w, "account profile not found")
			return
		default:
			s.logger.Warn("caller profile lookup failed",
				"account_id", claims.Subject, "degraded", true, "error", err)
		}

		ctx := context.WithValue(r.Context(), ctxKeyCaller, c)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole gates a route on a directory-confirmed role. The decision
// is delegated to the guard over a per-request snapshot, so the HTTP
// surface and the hub session enforce identical rules.
func (s *Server) requireRole(role directory.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := callerFrom(r.Context())
			if !ok {
				writeUnauthorized(w, "not signed in")
				return
			}

			snap := session.Snapshot{Account: &c.Identity, Role: c.Role(), Ready: true}
			decision := guard.Decide(snap, role)
			switch decision.Kind {
			case guard.Allow:
				next.ServeHTTP(w, r)
			case guard.Redirect:
				if decision.Location == guard.EntryPath {
					writeUnauthorized(w, "sign in required")
					return
				}
				w.Header().Set("Location", decision.Location)
				writeForbidden(w, "this area requires the "+string(role)+" role")
			default:
				writeForbidden(w, "session not ready")
			}
		})
	}
}

// isAllowedOrigin checks if the origin is in the allowed list.
// An empty list allows all origins (dev mode).
func (s *Server) isAllowedOrigin(origin string) bool {
	if len(s.cfg.CORS.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.CORS.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// requestIDBytes is the number of random bytes used for request IDs.
const requestIDBytes = 8

// generateRequestID creates a random hex request ID.
func generateRequestID() string {
	b := make([]byte, requestIDBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

// joinOrDefault joins a string slice with ", " or returns the default if empty.
func joinOrDefault(values []string, defaultVal string) string {
	if len(values) == 0 {
		return defaultVal
	}
	result := values[0]
	for _, v := range values[1:] {
		result += ", " + v
	}
	return result
}
