package auth

import (
	"encoding/json"
	"net/http"
)

// HTTPMiddleware resolves the bearer token into the request context. A
// rejected token always yields 401; a missing one only when required is set.
func HTTPMiddleware(next http.Handler, parser TokenParser, required bool) http.Handler {
	if next == nil {
		return nil
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			if required {
				writeUnauthorized(w, ErrMissingAuthorization.Error())
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		identity, err := ParseAuthorization(header, parser)
		if err != nil {
			writeUnauthorized(w, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireAdmin rejects requests whose context carries no admin identity.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := FromContext(r.Context())
		if !ok {
			writeUnauthorized(w, ErrMissingAuthorization.Error())
			return
		}
		if !identity.IsAdmin() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "admin role required"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeUnauthorized writes a standardized 401 body for auth middleware failures.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}
