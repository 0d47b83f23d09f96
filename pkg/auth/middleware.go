package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ndtools/mcp-client/pkg/logging"
)

// Credential extracts the key a request presents, preferring the
// Authorization header
func Credential(r *http.Request) string {
	if h := r.Header.Get(HeaderAuthorization); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, bearerScheme) {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get(HeaderAPIKey))
}

// Middleware rejects requests without an accepted credential with 401.
// Preflight requests pass through since browsers send them without one.
func Middleware(a Authenticator, logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithFields(logging.String("component", "auth"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			p, err := a.Authenticate(r.Context(), Credential(r))
			if err != nil {
				logger.Warn("Request rejected",
					logging.String("remote_addr", r.RemoteAddr),
					logging.ErrorField(err))
				w.Header().Set("WWW-Authenticate", bearerScheme+` realm="mcp"`)
				msg := ErrInvalidCredential.Error()
				if errors.Is(err, ErrMissingCredential) {
					msg = ErrMissingCredential.Error()
				}
				http.Error(w, msg, http.StatusUnauthorized)
				return
			}

			logger.Debug("Request authenticated", logging.String("principal", p.ID))
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
