package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"time"
)

// Policy configures Middleware.
type Policy struct {
	Name   string // label for metrics and logs, e.g. "auth"
	Limit  int
	Window time.Duration

	// OnLimited is called for every rejected request. Optional.
	OnLimited func(policy string, r *http.Request)
}

// Middleware rejects requests over the policy's limit with 429, keyed by
// the RemoteAddr host. Behind a reverse proxy, run middleware.RealIP first
// so RemoteAddr is the client rather than the proxy.
func Middleware(l Limiter, p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil || p.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			d := l.Allow(r.Context(), p.Name+":ip:"+clientIP(r), p.Limit, p.Window)
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(p.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining(p.Limit)))
			if !d.WindowEnd.IsZero() {
				h.Set("X-RateLimit-Reset", strconv.FormatInt(d.WindowEnd.Unix(), 10))
			}

			if !d.Allowed {
				if p.OnLimited != nil {
					p.OnLimited(p.Name, r)
				}
				retry := time.Until(d.WindowEnd).Round(time.Second)
				if retry < time.Second {
					retry = time.Second
				}
				h.Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","message":"too many requests, slow down"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return host
}
