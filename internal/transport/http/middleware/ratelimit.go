package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/fern-folio/bookstore-api/internal/domain"
)

type admitter interface {
	Allow(ctx context.Context, key string) error
}

// RateLimit rejects clients over their sliding-window quota with 429. The
// client is identified by the connection address; proxy headers are only
// consulted when trustProxy is set. Limiter failures let the request through.
func RateLimit(limiter admitter, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := remoteHost(r)
			if trustProxy {
				key = realIP(r)
			}
			err := limiter.Allow(r.Context(), key)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrRateLimited):
				tooManyRequests(w)
				return
			default:
				slog.Error("rate limiter unavailable, allowing request", "client", key, "err", err)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// realIP extracts the client IP behind a trusted proxy. Proxies append to
// X-Forwarded-For, so only the rightmost entry was written by the proxy;
// entries to its left come from the client. X-Real-Ip and then the host part
// of RemoteAddr are the fallbacks.
func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(xff[strings.LastIndex(xff, ",")+1:]); ip != "" {
			return ip
		}
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-Ip")); xr != "" {
		return xr
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
