package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tasklane/convo/internal/models"
	"github.com/tasklane/convo/internal/store"
)

type contextKey string

const UserContextKey contextKey = "user"

// AuthMiddleware resolves bearer tokens to identities. Token issuance
// belongs to the marketplace auth service; this layer only looks the
// token up.
type AuthMiddleware struct {
	db store.Store
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(db store.Store) *AuthMiddleware {
	return &AuthMiddleware{db: db}
}

// RequireAuth verifies the Authorization header and puts the resolved user
// on the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			jsonError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")

		user, err := m.db.GetUserByToken(r.Context(), token)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if user == nil {
			jsonError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetUserFromContext retrieves the authenticated user from the request
// context, or nil when the request was not authenticated.
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
