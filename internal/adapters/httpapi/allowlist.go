package httpapi

import (
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// allowList guards the intake endpoint: only the backend's egress IPs may
// submit events. Entries are single IPs or CIDR ranges. An empty list
// disables the check (local development).
type allowList struct {
	ips  []net.IP
	nets []*net.IPNet
	log  zerolog.Logger
}

func newAllowList(entries []string, baseLogger *zerolog.Logger) *allowList {
	al := &allowList{log: baseLogger.With().Str("component", "ip_allowlist").Logger()}

	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			_, network, err := net.ParseCIDR(entry)
			if err != nil {
				al.log.Warn().Str("entry", entry).Msg("Ignoring invalid CIDR range in allow list")
				continue
			}
			al.nets = append(al.nets, network)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			al.log.Warn().Str("entry", entry).Msg("Ignoring invalid IP in allow list")
			continue
		}
		al.ips = append(al.ips, ip)
	}

	if len(al.ips) == 0 && len(al.nets) == 0 {
		al.log.Warn().Msg("IP allow list is empty, intake is open to everyone")
	}
	return al
}

// Middleware rejects requests from addresses outside the allow list.
func (al *allowList) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(al.ips) == 0 && len(al.nets) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := clientAddr(r)
		if clientIP == nil || !al.allowed(clientIP) {
			al.log.Warn().Str("remote", r.RemoteAddr).Str("forwarded", r.Header.Get("X-Forwarded-For")).Msg("Rejected intake request from unlisted address")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (al *allowList) allowed(ip net.IP) bool {
	for _, allowed := range al.ips {
		if allowed.Equal(ip) {
			return true
		}
	}
	for _, network := range al.nets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// clientAddr resolves the caller's address, preferring the first entry of
// X-Forwarded-For when a proxy is in front.
func clientAddr(r *http.Request) net.IP {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port (some test servers)
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}
