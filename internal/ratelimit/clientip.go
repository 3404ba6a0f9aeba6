package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Proxies lists the reverse proxies allowed to report the client address
// through X-Forwarded-For or X-Real-IP. Headers from anyone else are ignored.
type Proxies struct {
	prefixes []netip.Prefix
}

// NewProxies parses CIDR ranges or bare addresses. An empty list trusts no
// proxy, so every client is keyed on its socket address.
func NewProxies(cidrs []string) (*Proxies, error) {
	p := &Proxies{}
	for _, raw := range cidrs {
		prefix, err := ParsePrefix(raw)
		if err != nil {
			return nil, err
		}
		p.prefixes = append(p.prefixes, prefix)
	}
	return p, nil
}

// ParsePrefix accepts "10.0.0.0/8" as well as a single address like "10.0.0.7".
func ParsePrefix(raw string) (netip.Prefix, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/") {
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid proxy range %q: %w", raw, err)
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid proxy address %q: %w", raw, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (p *Proxies) trusted(addr netip.Addr) bool {
	if p == nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the address a request is rate limited on. The socket
// address is used unless it belongs to a trusted proxy. In that case
// X-Forwarded-For is walked from the right and the first hop that is not a
// trusted proxy wins, so a client cannot pick its own key by prepending
// entries. X-Real-IP is the fallback.
func (p *Proxies) ClientIP(r *http.Request) string {
	socket := remoteHost(r.RemoteAddr)
	addr, err := netip.ParseAddr(socket)
	if err != nil || !p.trusted(addr) {
		return socket
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				// Anything left of a malformed hop was written by the client.
				break
			}
			if !p.trusted(hop) {
				return hop.Unmap().String()
			}
		}
	}

	if real, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return real.Unmap().String()
	}
	return socket
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
