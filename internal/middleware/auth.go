package middleware

import (
	"net/http"
	"strings"

	"ge-offer-relay/pkg/apierror"
)

// AuthConfig holds configuration for the ingest auth middleware.
type AuthConfig struct {
	// IngestKey is the shared key the event source must present. Empty
	// disables auth, for a relay bound to localhost only.
	IngestKey string
}

// NewAuthMiddleware guards the ingest API with a shared key, accepted as
// either X-API-Key or a bearer token. Health endpoints stay public.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.IngestKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			if r.URL.Path == "/api/v1/health" || r.URL.Path == "/api/v1/ready" {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					key = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if key == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use X-API-Key or a bearer token."))
				return
			}
			if key != cfg.IngestKey {
				writeError(w, apierror.Unauthorized("Invalid API key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}
