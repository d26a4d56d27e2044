package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const stationContextKey contextKey = "station"

const jwtClaimEdgeID = "edge_id"

// Authenticate проверяет Bearer JWT станции и кладёт claims в контекст.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), stationContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EdgeIDFromContext достаёт edge_id из claims, положенных Authenticate.
func EdgeIDFromContext(ctx context.Context) (string, error) {
	claims, ok := ctx.Value(stationContextKey).(jwt.MapClaims)
	if !ok {
		return "", errors.New("station claims not found in context")
	}
	edgeIDClaim, ok := claims[jwtClaimEdgeID]
	if !ok {
		return "", fmt.Errorf("missing '%s' claim in token", jwtClaimEdgeID)
	}
	edgeID, ok := edgeIDClaim.(string)
	if !ok || edgeID == "" {
		return "", fmt.Errorf("invalid type for '%s' claim: expected string, got %T", jwtClaimEdgeID, edgeIDClaim)
	}
	return edgeID, nil
}
