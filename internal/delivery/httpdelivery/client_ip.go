package httpdelivery

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type clientIPKey struct{}

// clientResolver derives the caller address used for rate limiting and logs.
// X-Forwarded-For is only read when the socket peer is a trusted proxy.
type clientResolver struct {
	trusted []netip.Prefix
}

func newClientResolver(trusted []netip.Prefix) *clientResolver {
	return &clientResolver{trusted: trusted}
}

func (c *clientResolver) isTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// resolve returns the socket address unless it belongs to a trusted proxy.
// Behind trusted proxies it walks X-Forwarded-For from the right and returns
// the first hop that is not itself trusted.
func (c *clientResolver) resolve(r *http.Request) string {
	remote := socketHost(r.RemoteAddr)
	if len(c.trusted) == 0 {
		return remote
	}
	peer, err := netip.ParseAddr(remote)
	if err != nil || !c.isTrusted(peer) {
		return remote
	}

	var hops []string
	for _, value := range r.Header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(value, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}

	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(hops[i])
		if err != nil {
			// Garbage left of a trusted hop was written by the client.
			return remote
		}
		if !c.isTrusted(addr) {
			return addr.Unmap().String()
		}
	}
	return remote
}

func socketHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// clientIPMiddleware resolves the caller once per request.
func clientIPMiddleware(resolver *clientResolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPKey{}, resolver.resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientKey identifies the caller for rate limiting and logs.
func clientKey(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return socketHost(r.RemoteAddr)
}
