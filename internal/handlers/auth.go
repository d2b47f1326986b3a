package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"cantogame/internal/models"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const ViewerContextKey ContextKey = "viewer"

// Claims are the bearer token claims. The subject is the user id.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens issued by the login service
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator creates an authenticator for tokens signed with secret
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's viewer in the request context
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondWithError(w, http.StatusUnauthorized, "Authorization header required", "", nil)
			return
		}

		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
			respondWithError(w, http.StatusUnauthorized, "Invalid Authorization header format", "", nil)
			return
		}

		claims := &Claims{}
		token, err := a.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
			return a.secret, nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				respondWithError(w, http.StatusUnauthorized, "Token has expired", "", nil)
			} else {
				respondWithError(w, http.StatusUnauthorized, "Invalid token", "", nil)
			}
			return
		}
		if !token.Valid || claims.Subject == "" || !claims.Role.Valid() {
			respondWithError(w, http.StatusUnauthorized, "Invalid token", "", nil)
			return
		}

		viewer := models.Viewer{UserID: claims.Subject, Role: claims.Role}
		next.ServeHTTP(w, r.WithContext(withViewer(r.Context(), viewer)))
	})
}

func withViewer(ctx context.Context, v models.Viewer) context.Context {
	return context.WithValue(ctx, ViewerContextKey, v)
}

// ViewerFrom returns the authenticated viewer stored by the middleware
func ViewerFrom(ctx context.Context) (models.Viewer, bool) {
	v, ok := ctx.Value(ViewerContextKey).(models.Viewer)
	return v, ok
}
