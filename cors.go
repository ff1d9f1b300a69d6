package main

import (
	"net/http"
	"strings"
)

// withCORS wraps an http.Handler and adds CORS headers so the frontend can
// call this API from a different origin.
//
// allowedOrigins comes from ALLOWED_ORIGINS (comma-separated); "*" allows
// any origin. Entries without a scheme are normalized to http:// so the
// browser sees an exact match to Origin.
func withCORS(next http.Handler, allowedOrigins []string) http.Handler {
	normalized := make([]string, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o != "*" && !strings.Contains(o, "://") {
			o = "http://" + o
		}
		normalized = append(normalized, o)
	}

	allowed := func(origin string) string {
		for _, o := range normalized {
			if o == "*" {
				return "*"
			}
			if o == origin {
				return origin
			}
		}
		return ""
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := allowed(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-User-Id")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		// Handle preflight requests quickly
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
