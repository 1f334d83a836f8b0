package web

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/rentdir/bulk-importer/postgres"
	"github.com/rentdir/bulk-importer/processor"
)

// AccountSource resolves API tokens to accounts.
type AccountSource interface {
	AccountByToken(ctx context.Context, token string) (postgres.Account, error)
}

type contextKey string

const identityKey contextKey = "identity"

// IdentityFrom returns the authenticated caller stored by the auth middleware.
func IdentityFrom(ctx context.Context) (processor.Identity, bool) {
	id, ok := ctx.Value(identityKey).(processor.Identity)

	return id, ok
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrInvalidToken
	}

	return parts[1], nil
}

// authenticate resolves the bearer token to an account and stores the
// resulting identity in the request context. Requests without a valid token
// never reach the wrapped handler.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			renderJSON(w, http.StatusUnauthorized, apiError{Code: http.StatusUnauthorized, Message: err.Error()})

			return
		}

		account, err := s.accounts.AccountByToken(r.Context(), token)
		if err != nil {
			s.lg.Warn("token rejected", zap.String("path", r.URL.Path), zap.Error(err))
			renderJSON(w, http.StatusUnauthorized, apiError{Code: http.StatusUnauthorized, Message: "invalid token"})

			return
		}

		identity := processor.Identity{AccountID: account.ID, Role: account.Role}
		ctx := context.WithValue(r.Context(), identityKey, identity)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
