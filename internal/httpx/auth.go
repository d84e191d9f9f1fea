package httpx

import (
	"log/slog"
	"net/http"

	"github.com/alkuinvito/kasirin/internal/auth"
)

// Authenticate turns the bearer token into a Principal on the request context.
func Authenticate(tokens *auth.Tokens, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := tokens.FromHeader(r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole rejects principals ranked below min.
func RequireRole(min auth.Role, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.FromContext(r.Context())
			if !ok {
				writeError(w, r, log, auth.ErrUnauthorized)
				return
			}
			if err := p.Allow(min); err != nil {
				writeError(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principal(r *http.Request) (auth.Principal, error) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		return auth.Principal{}, auth.ErrUnauthorized
	}
	return p, nil
}
