package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

const corsMaxAge = 300

// CORS lets the storefront front-ends call the API from the browser. An
// origin entry may be exact ("https://shop.example.com"), a subdomain
// wildcard ("https://*.example.com") or "*".
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := compileOrigins(origins)
	return cors.New(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return allowed.match(origin)
		},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", IdempotencyHeader, requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, replayedHeader},
		MaxAge:         corsMaxAge,
	}).Handler
}

type originRule struct {
	scheme string
	suffix string // ".example.com" for wildcards
	exact  string
}

type originSet struct {
	any   bool
	rules []originRule
}

func compileOrigins(origins []string) originSet {
	var set originSet
	for _, raw := range origins {
		origin := strings.ToLower(strings.TrimRight(strings.TrimSpace(raw), "/"))
		switch {
		case origin == "":
			continue
		case origin == "*":
			set.any = true
		case strings.Contains(origin, "://*."):
			scheme, host, _ := strings.Cut(origin, "://")
			set.rules = append(set.rules, originRule{scheme: scheme, suffix: strings.TrimPrefix(host, "*")})
		default:
			set.rules = append(set.rules, originRule{exact: origin})
		}
	}
	return set
}

func (s originSet) match(origin string) bool {
	if s.any {
		return true
	}
	origin = strings.ToLower(origin)
	for _, rule := range s.rules {
		if rule.exact != "" {
			if origin == rule.exact {
				return true
			}
			continue
		}
		scheme, host, ok := strings.Cut(origin, "://")
		if ok && scheme == rule.scheme && strings.HasSuffix(host, rule.suffix) && len(host) > len(rule.suffix) {
			return true
		}
	}
	return false
}
