package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/corn-moisture/platform/internal/auth"
	"github.com/corn-moisture/platform/internal/logging"
	"github.com/go-chi/chi/v5/middleware"
)

const apiKeyHeader = "x-api-key"

// RequireAuth verifies the bearer access token and stores its claims in the
// request context. The user is not looked up in the database.
func RequireAuth(issuer *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, msgTokenRequired)
				return
			}

			claims, err := issuer.ParseAccessToken(tokenString)
			switch {
			case errors.Is(err, auth.ErrMissingUserID):
				writeMessage(w, http.StatusBadRequest, msgMissingUserID)
				return
			case err != nil:
				writeMessage(w, http.StatusForbidden, msgInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), contextClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*auth.AccessClaims, bool) {
	claims, ok := ctx.Value(contextClaimsKey).(*auth.AccessClaims)
	return claims, ok && claims != nil
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// APIKey rejects requests whose x-api-key header does not match key.
func APIKey(key string, log logging.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logging.Nop()
	}
	expected := []byte(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := []byte(r.Header.Get(apiKeyHeader))
			if len(expected) == 0 || subtle.ConstantTimeCompare(provided, expected) != 1 {
				log.Warn(r.Context(), "api key rejected",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
					"request_id", middleware.GetReqID(r.Context()),
				)
				writeError(w, http.StatusForbidden, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS sets cross-origin headers. With allowAll set any origin is accepted;
// otherwise requests without an Origin header and origins in allowed pass.
// Disallowed origins are answered with 403.
func CORS(allowed []string, allowAll bool) func(http.Handler) http.Handler {
	origins := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origins[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				_, ok := origins[origin]
				if !allowAll && !ok {
					writeMessage(w, http.StatusForbidden, "Not allowed by CORS")
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID, X-API-Key")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Recoverer turns panics into a 500 JSON response and logs the stack.
func Recoverer(log logging.Logger, dev bool, style ErrorStyle) func(http.Handler) http.Handler {
	if log == nil {
		log = logging.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				stack := string(debug.Stack())
				log.Error(r.Context(), "panic recovered",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", fmt.Sprint(rec),
					"stack", stack,
					"request_id", middleware.GetReqID(r.Context()),
				)
				writeJSON(w, http.StatusInternalServerError, internalErrorBody(style, dev, fmt.Sprintf("%v\n%s", rec, stack)))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
