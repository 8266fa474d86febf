// Package middleware implements the HTTP middleware for the WagerProof
// API: session authentication, structured request logging, and tracing.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wagerproof/wagerproof/internal/store"
	"github.com/wagerproof/wagerproof/pkg/models"
)

type contextKey string

// identityKey is the context key for the authenticated caller.
const identityKey contextKey = "identity"

// Auth authenticates requests by resolving the bearer session token
// against the account store. Admin and pro status always come from the
// server-side account record — a client-supplied flag is never trusted.
type Auth struct {
	store store.AccountStore
}

// NewAuth creates the auth middleware.
func NewAuth(s store.AccountStore) *Auth {
	return &Auth{store: s}
}

// Handler rejects requests without a valid session and stores the
// resulting Identity in context for handlers to consume.
func (a *Auth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			unauthorized(w, "missing bearer token")
			return
		}

		account, err := a.store.GetAccountByToken(r.Context(), token)
		if err != nil {
			var nf *store.ErrNotFound
			if !errors.As(err, &nf) {
				log.Error().Err(err).Msg("Session lookup failed")
			}
			unauthorized(w, "invalid session token")
			return
		}

		identity := models.Identity{
			AccountID:    account.ID,
			IsAdmin:      account.IsAdmin,
			HasProAccess: account.HasProAccess,
		}
		ctx := SetIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetIdentity stores the authenticated caller in context.
func SetIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity retrieves the authenticated caller from context. The second
// return is false on unauthenticated requests (public routes).
func GetIdentity(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(models.Identity)
	return id, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="wagerproof"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   string(models.KindUnauthorized),
		"message": message,
	})
}
