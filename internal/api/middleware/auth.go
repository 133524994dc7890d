package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/cloo-solutions/ragline/internal/api"
	"github.com/getsentry/sentry-go"
)

type contextKey string

const ClientIDKey contextKey = "client_id"

// BearerAuth accepts requests carrying "Authorization: Bearer <apiKey>".
// The client ID stored in context is a short digest of the token, never the token itself.
func BearerAuth(apiKey string) func(http.Handler) http.Handler {
	expected := []byte(apiKey)
	clientID := tokenDigest(apiKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
				hub.Scope().SetTag("client_id", clientID)
			}

			ctx := context.WithValue(r.Context(), ClientIDKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "key_" + hex.EncodeToString(sum[:6])
}

// GetClientID returns the authenticated client ID, or "" for anonymous requests.
func GetClientID(ctx context.Context) string {
	clientID, _ := ctx.Value(ClientIDKey).(string)
	return clientID
}
