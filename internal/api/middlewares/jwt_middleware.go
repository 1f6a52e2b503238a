package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const callerEmailKey ctxKey = "caller_email"

// CallerIdentity reads an optional bearer token and, when it verifies against secret,
// attaches its email claim to the request context. Requests are never rejected; a
// missing or invalid token just leaves the caller anonymous. An empty secret disables
// the middleware.
func CallerIdentity(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if email := emailFromToken(r.Header.Get("Authorization"), secret); email != "" {
				r = r.WithContext(context.WithValue(r.Context(), callerEmailKey, email))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func emailFromToken(auth, secret string) string {
	tokenStr, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || tokenStr == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil || !token.Valid {
		return ""
	}

	email, _ := claims["email"].(string)
	return email
}

// CallerEmail returns the verified caller email, or "" for anonymous requests.
func CallerEmail(ctx context.Context) string {
	email, _ := ctx.Value(callerEmailKey).(string)
	return email
}
