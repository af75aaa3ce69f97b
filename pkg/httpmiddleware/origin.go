package httpmiddleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// AllowOrigins rejects requests from origins outside allowed with 403. The
// origin is taken from the Origin header, or from the Referer host when
// Origin is absent. Requests carrying neither are let through, as are all
// requests when allowed is empty.
//
// Entries may be bare hosts ("shop.example.com") or full origins
// ("https://shop.example.com"); matching is case-insensitive.
func AllowOrigins(allowed []string) Middleware {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.ToLower(strings.TrimSpace(o))
		if o == "" {
			continue
		}
		set[o] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		if len(set) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := requestOrigin(r)
			if origin != "" && !matchOrigin(origin, set) {
				zctx.From(r.Context()).Warn("Origin not allowed", zap.String("origin", origin))
				WriteError(w, http.StatusForbidden, "Origin not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestOrigin(r *http.Request) string {
	if o := r.Header.Get("Origin"); o != "" {
		return o
	}
	if ref := r.Header.Get("Referer"); ref != "" {
		if u, err := url.Parse(ref); err == nil {
			return u.Host
		}
	}
	return ""
}

// matchOrigin checks origin both as given and by host alone.
func matchOrigin(origin string, allowed map[string]struct{}) bool {
	origin = strings.ToLower(origin)
	if _, ok := allowed[origin]; ok {
		return true
	}
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		_, ok := allowed[u.Host]
		return ok
	}
	return false
}
