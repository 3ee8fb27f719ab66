package api

import (
	"context"
	"net/http"
	"strings"

	"filebox/internal/auth"
)

type contextKey string

const userContextKey = contextKey("user")

func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || headerParts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		tokenString := headerParts[1]

		claims, err := auth.VerifyJWT(tokenString, s.config.JWT.Secret)
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetUserFromContext(ctx context.Context) *auth.AppClaims {
	if claims, ok := ctx.Value(userContextKey).(*auth.AppClaims); ok {
		return claims
	}
	return nil
}

// multipartOverhead leaves room for boundaries and part headers on top
// of the payload size limit.
const multipartOverhead = 10 << 20

// LimitUploadSize rejects oversized uploads from the Content-Length
// header before any bytes are read, so a doomed upload never reaches
// the blob store.
func (s *Server) LimitUploadSize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.ContentLength > s.config.Storage.SizeLimitBytes+multipartOverhead {
			writeError(w, http.StatusRequestEntityTooLarge, kindPayloadTooLarge, "upload exceeds the size limit")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.config.Storage.SizeLimitBytes+multipartOverhead)
		next.ServeHTTP(w, r)
	})
}
