package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures Cross-Origin Resource Sharing (CORS) policies.
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// originPolicy is the precomputed allow decision shared by every request.
type originPolicy struct {
	wildcard bool
	origins  map[string]struct{}
}

func newOriginPolicy(allowed []string) originPolicy {
	policy := originPolicy{origins: make(map[string]struct{})}
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			policy.wildcard = true
			return policy
		}
		policy.origins[origin] = struct{}{}
	}
	return policy
}

func (p originPolicy) allows(origin string) bool {
	if p.wildcard {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

// CORSMiddleware adds CORS headers and handles preflight requests. Header
// values are assembled once; per-request work is the origin lookup.
func CORSMiddleware(cfg CORSConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	policy := newOriginPolicy(cfg.AllowedOrigins)
	methodsHeader := strings.Join(cfg.AllowedMethods, ", ")
	headersHeader := strings.Join(cfg.AllowedHeaders, ", ")
	exposeHeader := strings.Join(cfg.ExposeHeaders, ", ")
	maxAgeHeader := ""
	if cfg.MaxAge > 0 {
		maxAgeHeader = strconv.Itoa(cfg.MaxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed := policy.allows(origin)
			if allowed {
				if policy.wildcard {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}

				// Credentials with a wildcard origin is forbidden by the spec.
				if cfg.AllowCredentials && !policy.wildcard {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}

				if exposeHeader != "" {
					w.Header().Set("Access-Control-Expose-Headers", exposeHeader)
				}
			}

			if r.Method == http.MethodOptions {
				if allowed {
					if methodsHeader != "" {
						w.Header().Set("Access-Control-Allow-Methods", methodsHeader)
					}
					if headersHeader != "" {
						w.Header().Set("Access-Control-Allow-Headers", headersHeader)
					}
					if maxAgeHeader != "" {
						w.Header().Set("Access-Control-Max-Age", maxAgeHeader)
					}
				}

				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
