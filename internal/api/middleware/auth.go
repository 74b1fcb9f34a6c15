package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dsa_tracker/internal/common"
	"dsa_tracker/internal/common/security"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const (
	UserIDCtxKey      contextKey = "userID"
	TokenIDCtxKey     contextKey = "tokenID"
	TokenExpiryCtxKey contextKey = "tokenExpiry"
)

// RevocationChecker reports whether a token id was signed out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Authenticator rejects requests without a valid, unrevoked token and puts
// the user id, token id and expiry on the request context.
func Authenticator(revoked RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				if errors.Is(err, jwtauth.ErrNoTokenFound) || token == nil {
					common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
				} else {
					common.RespondWithError(w, http.StatusUnauthorized, "Invalid token: "+err.Error())
				}
				return
			}
			if token == nil {
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			userID, err := security.GetUserIDFromClaims(claims)
			if err != nil {
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims: "+err.Error())
				return
			}
			tokenID, err := security.GetTokenIDFromClaims(claims)
			if err != nil {
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims: "+err.Error())
				return
			}

			if revoked != nil {
				isRevoked, err := revoked.IsRevoked(r.Context(), tokenID)
				if err != nil {
					common.RespondWithDomainError(w, err)
					return
				}
				if isRevoked {
					common.RespondWithError(w, http.StatusUnauthorized, "Token has been revoked")
					return
				}
			}

			ctx := context.WithValue(r.Context(), UserIDCtxKey, userID)
			ctx = context.WithValue(ctx, TokenIDCtxKey, tokenID)
			ctx = context.WithValue(ctx, TokenExpiryCtxKey, security.GetExpiryFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Helper to get user ID from context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDCtxKey).(string)
	return userID, ok
}

func GetTokenFromContext(ctx context.Context) (tokenID string, expiresAt time.Time, ok bool) {
	tokenID, ok = ctx.Value(TokenIDCtxKey).(string)
	expiresAt, _ = ctx.Value(TokenExpiryCtxKey).(time.Time)
	return tokenID, expiresAt, ok
}
