package httpmiddleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// BearerSecret rejects requests whose Authorization header is not
// "Bearer <secret>" with 401. An empty secret disables the check.
func BearerSecret(secret string) Middleware {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		want := []byte(secret)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
				zctx.From(r.Context()).Warn("Unauthorized request", zap.String("path", r.URL.Path))
				WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
