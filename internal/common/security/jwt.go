package security

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"service_finder/internal/common"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

const userIDClaim = "user_id"

// TokenService issues and verifies HS256 identity tokens. Tokens carry only
// the user id; roles are always resolved from the store.
type TokenService struct {
	auth *jwtauth.JWTAuth
	ttl  time.Duration
}

func NewTokenService(key []byte, ttl time.Duration) *TokenService {
	return &TokenService{
		auth: jwtauth.New("HS256", key, nil),
		ttl:  ttl,
	}
}

func (s *TokenService) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("cannot issue token for empty user id")
	}
	claims := jwt.MapClaims{userIDClaim: userID}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, s.ttl)
	_, tokenString, err := s.auth.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	return tokenString, nil
}

// Verify checks signature and expiry and returns the embedded user id.
// HTTP requests go through Verifier and UserIDFromClaims instead; Verify is
// for callers holding a raw token outside a request.
func (s *TokenService) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("token not found: %w", common.ErrUnauthorized)
	}
	token, err := jwtauth.VerifyToken(s.auth, tokenString)
	if err != nil {
		return "", fmt.Errorf("invalid token: %v: %w", err, common.ErrUnauthorized)
	}
	raw, ok := token.Get(userIDClaim)
	if !ok {
		return "", fmt.Errorf("user_id claim is missing: %w", common.ErrUnauthorized)
	}
	return UserIDFromClaims(jwt.MapClaims{userIDClaim: raw})
}

// Verifier looks for a bearer token in the Authorization header only and
// stores the verification outcome in the request context.
func (s *TokenService) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verify(s.auth, jwtauth.TokenFromHeader)
}

func UserIDFromClaims(claims jwt.MapClaims) (string, error) {
	id, ok := claims[userIDClaim].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("user_id claim is missing or not a string: %w", common.ErrUnauthorized)
	}
	return id, nil
}
