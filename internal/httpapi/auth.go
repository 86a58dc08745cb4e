package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"hypnosd/internal/gateway"
)

const bearerPrefix = "Bearer "

// checkBearer validates an Authorization header value against secret.
func checkBearer(header, secret string) error {
	if header == "" {
		return gateway.AuthError{Reason: gateway.AuthMissing}
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return gateway.AuthError{Reason: gateway.AuthMalformed}
	}
	token := header[len(bearerPrefix):]
	if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		return gateway.AuthError{Reason: gateway.AuthInvalid}
	}
	return nil
}

// BearerAuth rejects requests whose bearer token does not match secret.
// The secret is fixed for the lifetime of the returned middleware.
func BearerAuth(secret string, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := checkBearer(r.Header.Get("Authorization"), secret)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}
			reason := err.(gateway.AuthError).Reason
			authFailuresTotal.WithLabelValues(string(reason)).Inc()
			ev := log.Warn().Str("path", r.URL.Path).Str("reason", string(reason))
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				ev = ev.Str("request_id", rid)
			}
			ev.Msg("auth rejected")
			writeJSONError(w, statusOf(err), err.Error())
		})
	}
}
