// Package auth provides JWT bearer authentication for the API surface.
//
// The service does not issue tokens; it validates tokens minted by the
// organization's SSO and extracts the actor identity that the validation
// workflow records as resolver.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"hive/pkg/requestcontext"
)

// Claims carries the identity fields the core cares about.
type Claims struct {
	ActorID string
	Roles   []string
}

// Validator validates a bearer token and returns its claims.
type Validator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// HMACValidator validates HS256 tokens signed with a shared key.
type HMACValidator struct {
	signingKey []byte
}

// NewHMACValidator creates a validator for the given shared signing key.
func NewHMACValidator(signingKey string) *HMACValidator {
	return &HMACValidator{signingKey: []byte(signingKey)}
}

type tokenClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// ValidateToken parses and verifies the token, rejecting unexpected signing
// methods.
func (v *HMACValidator) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return &Claims{ActorID: claims.Subject, Roles: claims.Roles}, nil
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth rejects requests without a valid bearer token and stores the
// actor identity in context.
func RequireAuth(validator Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok || token == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			ctx := requestcontext.WithActorID(r.Context(), claims.ActorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
