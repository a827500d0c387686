package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"api-boilerplate/internal/user"
)

type currentUserKey struct{}

// ContextWithUser attaches the authorized user to the request context.
func ContextWithUser(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, currentUserKey{}, u)
}

// UserFromContext returns the user placed there by Require.
func UserFromContext(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(currentUserKey{}).(user.User)
	return u, ok
}

// Require guards a handler with a permission check. The bearer access token is
// decoded and the caller re-resolved on every request.
func Require(service *Service, perm Permission, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}

		account, err := service.Authorize(r.Context(), token, perm)
		if err != nil {
			switch {
			case errors.Is(err, ErrUnauthenticated):
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
			case errors.Is(err, ErrAccountInactive):
				writeError(w, http.StatusForbidden, "account is inactive")
			case errors.Is(err, ErrForbidden):
				writeError(w, http.StatusForbidden, "insufficient permissions")
			default:
				sentry.CaptureException(err)
				writeError(w, http.StatusInternalServerError, "failed to authorize request")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), account)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
