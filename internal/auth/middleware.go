package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/notecode/internal/apperror"
	"github.com/sakif/notecode/internal/model"
	"github.com/sakif/notecode/internal/repository"
)

// contextKey is an unexported type for this package's context keys.
// Using a package-private type (instead of a bare string) means no other
// package can read or shadow the value we store — only this package can
// construct the key.
type contextKey string

const userKey contextKey = "user"

const bearerPrefix = "Bearer "

// RequireAuth enforces authentication on protected routes.
//
// For each request it:
//  1. extracts the token from the Authorization header — the scheme must be
//     exactly "Bearer " followed by the token;
//  2. validates the JWT (signature, expiry, issuer);
//  3. loads the user record for the token's subject;
//  4. stores the user in the request context and calls the next handler.
//
// Steps 1-3 failing means the chain stops here with a 401 — the wrapped
// handler never runs. Missing header, garbage token, and unknown subject all
// produce the same generic 401 body so the response doesn't reveal which
// check failed. A storage fault during the user lookup is NOT an auth
// failure and returns 500 instead.
func RequireAuth(tokens *TokenService, users repository.UserRepository, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			userID, err := tokens.Validate(tokenStr)
			if err != nil {
				unauthorized(w)
				return
			}

			user, err := users.GetUserByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					// A valid signature over a subject we don't know —
					// the account was deleted, or the token came from
					// another deployment sharing the secret.
					unauthorized(w)
					return
				}
				// Database outage, not a credential problem.
				logger.Error("auth: resolving user failed",
					slog.String("userID", userID),
					slog.String("error", err.Error()),
				)
				writeRefusal(w, http.StatusInternalServerError,
					`{"error":"internal_error","message":"An internal error occurred"}`)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// ContextWithUser returns a context carrying the authenticated user. Outside
// of RequireAuth this is only useful for handler tests, which need to
// simulate an already-authenticated request.
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves the authenticated user set by RequireAuth.
// Returns (nil, false) if the request did not pass through the middleware.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

// bearerToken extracts the credential from the Authorization header.
// The scheme check is an exact, case-sensitive prefix match: "bearer x",
// "Bearer" with no token, and a bare token are all rejected.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := header[len(bearerPrefix):]
	if token == "" {
		return "", false
	}
	return token, true
}

func unauthorized(w http.ResponseWriter) {
	writeRefusal(w, http.StatusUnauthorized,
		`{"error":"unauthorized","message":"valid authentication required"}`)
}

// writeRefusal sends a pre-rendered JSON error body. The middleware doesn't
// reuse the handler package's helpers to keep the import direction
// one-way (handler imports auth, never the reverse).
func writeRefusal(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body + "\n"))
}
