package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/auth"
)

// APIKeyHeader is the request header carrying the caller's API key.
const APIKeyHeader = "api_key"

// Authenticator resolves an API key to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (string, error)
}

type userIDKey struct{}

// WithUserID returns ctx carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID returns the authenticated user id, or "" outside RequireAPIKey.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// RequireAPIKey rejects requests without a valid api_key header with 401.
// The resolved user id is stored in the request context and logger.
func RequireAPIKey(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized - No API key provided")
				return
			}

			userID, err := authn.Authenticate(ctx, key)
			if err != nil {
				if !errors.Is(err, auth.ErrUnauthorized) {
					zctx.From(ctx).Error("Authenticate", zap.Error(err))
				}
				writeError(w, http.StatusUnauthorized, "Unauthorized - Invalid API key")
				return
			}

			ctx = WithUserID(ctx, userID)
			ctx = zctx.With(ctx, zap.String("user_id", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
