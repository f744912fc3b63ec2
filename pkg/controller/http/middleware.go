package http

import (
	"context"
	"net/http"
	"strings"
)

// TokenVerifier validates a bearer token and returns its subject
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (string, error)
}

type subjectKey struct{}

// SubjectFrom returns the verified token subject stored by the auth
// middleware, or an empty string when the request was not authenticated
func SubjectFrom(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey{}).(string)
	return sub
}

// authMiddleware validates the Authorization bearer token for API requests
func authMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(authz, "Bearer ")
			if !ok || raw == "" {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			sub, err := verifier.Verify(r.Context(), raw)
			if err != nil {
				http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
