package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	UserIDKey      contextKey = "userID"
	TokenClaimsKey contextKey = "jwtClaims"
)

// Auth is optional identity: a valid bearer token attaches the caller's
// user id to the context, anything else leaves the request anonymous.
// Guests check out without a token, so a missing or bad token is never
// a rejection here.
func Auth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
				return secret, nil
			})

			if err != nil || !token.Valid {
				next.ServeHTTP(w, r)
				return
			}

			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				ctx := context.WithValue(r.Context(), TokenClaimsKey, claims)
				if uid, ok := claims["user_id"].(float64); ok {
					ctx = context.WithValue(ctx, UserIDKey, uint(uid))
				}
				r = r.WithContext(ctx)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CallerID returns the authenticated user's id, or nil for guests.
func CallerID(ctx context.Context) *uint {
	if id, ok := ctx.Value(UserIDKey).(uint); ok {
		return &id
	}
	return nil
}
