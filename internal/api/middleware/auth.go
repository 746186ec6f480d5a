package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"

	"service_finder/internal/common"
	"service_finder/internal/common/security"
	"service_finder/internal/domain/model"
	"service_finder/internal/domain/repository"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UserCtxKey contextKey = "user"

// Authenticator resolves the verified token to a live user record. It must run
// after the token verifier. The user is looked up on every request so that
// deletions and role changes take effect immediately.
func Authenticator(users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				if errors.Is(err, jwtauth.ErrNoTokenFound) {
					common.RespondWithError(w, http.StatusUnauthorized, "Not authorized, no token")
				} else {
					common.RespondWithError(w, http.StatusUnauthorized, "Not authorized, token failed")
				}
				return
			}
			if token == nil {
				common.RespondWithError(w, http.StatusUnauthorized, "Not authorized, no token")
				return
			}

			userID, err := security.UserIDFromClaims(jwt.MapClaims(claims))
			if err != nil {
				common.RespondWithError(w, http.StatusUnauthorized, "Not authorized, token failed")
				return
			}

			user, err := users.FindByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					common.RespondWithError(w, http.StatusUnauthorized, "Not authorized, user not found")
					return
				}
				log.Printf("ERROR: resolving user %s: %v", userID, err)
				common.RespondWithError(w, http.StatusInternalServerError, common.ErrInternalServer.Error())
				return
			}

			ctx := context.WithValue(r.Context(), UserCtxKey, user.Sanitized())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			common.RespondWithError(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		if !user.IsAdmin {
			common.RespondWithError(w, http.StatusForbidden, "Not authorized as an admin")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserFromContext returns the user attached by Authenticator.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(UserCtxKey).(*model.User)
	return user, ok && user != nil
}
