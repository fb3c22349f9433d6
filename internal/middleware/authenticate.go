package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/respond"
)

// AccessTokenVerifier validates access tokens.
type AccessTokenVerifier interface {
	ParseAccess(token string) (*auth.Claims, error)
}

// Authenticate requires a valid access token, taken from the accessToken
// cookie or else an Authorization bearer header, and stores the caller's
// identity on the request context.
func Authenticate(verifier AccessTokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := accessToken(r)
			if token == "" {
				respond.Failure(ctx, w, http.StatusUnauthorized, "Unauthorized request", nil)
				return
			}

			claims, err := verifier.ParseAccess(token)
			if err != nil {
				logging.FromContext(ctx).Warn("access token rejected", slog.Any("error", err))
				respond.Failure(ctx, w, http.StatusUnauthorized, "Invalid access token", nil)
				return
			}

			identity := auth.IdentityFromClaims(claims)
			ctx = auth.WithIdentity(ctx, identity)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With(slog.String("user_id", identity.UserID)))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accessToken(r *http.Request) string {
	if cookie, err := r.Cookie(auth.AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
