package auth

import (
	"context"
	"net/http"

	"github.com/appcraft/showcase-service/src/internal/model"
	"github.com/appcraft/showcase-service/src/internal/store"

	"go.uber.org/zap"
)

// SessionCookie is the name of the HttpOnly cookie carrying the session
// token.
const SessionCookie = "token"

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal resolves the session cookie into a model.Principal and puts
// it on the request context. Requests without a valid session proceed as
// anonymous; enforcement happens per operation, not here.
func WithPrincipal(tokens *TokenService, repo store.Repository, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := tokens.Validate(cookie.Value)
			if err != nil {
				logger.Debug("session token rejected", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			user, err := repo.GetUser(r.Context(), userID)
			if err != nil {
				logger.Debug("session user not found", zap.String("user", userID), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			principal := model.Principal{
				UserID:   user.ID,
				GitHubID: user.GitHubID,
				IsAdmin:  user.IsAdmin,
			}
			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the acting principal, or the anonymous
// principal when the request has no valid session.
func PrincipalFromContext(ctx context.Context) model.Principal {
	if p, ok := ctx.Value(principalKey).(model.Principal); ok {
		return p
	}
	return model.Principal{}
}
