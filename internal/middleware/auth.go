package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/highlights/internal/auth"
)

// TokenValidator validates bearer tokens. auth.JWTService satisfies it.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// Authenticate resolves the caller from an "Authorization: Bearer <token>"
// header and stores it in the request context. Requests without the header
// continue as anonymous callers; handlers decide whether that is allowed.
// A malformed, expired or otherwise invalid token is rejected with 401.
func Authenticate(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(header)
			if !ok {
				rejectToken(w, r, "Authorization header must use the Bearer scheme")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				msg := "Invalid access token"
				if errors.Is(err, auth.ErrExpiredToken) {
					msg = "Access token has expired"
				}
				rejectToken(w, r, msg)
				return
			}

			caller := auth.CallerFromClaims(claims)
			ctx := auth.WithCaller(r.Context(), caller)
			ctx = SetUserID(ctx, caller.UserID)
			UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func rejectToken(w http.ResponseWriter, r *http.Request, message string) {
	UpdateResponseContext(w, SetErrorCode(r.Context(), "auth_failed"))
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeJSONError(w, http.StatusUnauthorized, "auth_failed", message)
}
