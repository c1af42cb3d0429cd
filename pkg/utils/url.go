package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
)

var ErrPrivateAddress = errors.New("address is not publicly routable")

var blockedHosts = map[string]bool{
	"localhost":                true,
	"metadata.google.internal": true,
	"instance-data":            true,
}

// ValidatePublicURL rejects anything that is not an http(s) URL resolving
// only to public addresses.
func ValidatePublicURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return errors.New("URL has no host")
	}
	if blockedHosts[host] || strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal") {
		return fmt.Errorf("%s: %w", host, ErrPrivateAddress)
	}

	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", host, err)
	}
	for _, addr := range addrs {
		if !isPublic(addr) {
			return fmt.Errorf("%s resolves to %s: %w", host, addr, ErrPrivateAddress)
		}
	}
	return nil
}

const maxRedirects = 10

// PublicRedirects is an http.Client CheckRedirect policy that runs every
// redirect target through ValidatePublicURL.
func PublicRedirects(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if err := ValidatePublicURL(req.Context(), req.URL.String()); err != nil {
		return fmt.Errorf("redirect to %s rejected: %w", req.URL.Redacted(), err)
	}
	return nil
}

func isPublic(addr netip.Addr) bool {
	addr = addr.Unmap()
	return !(addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsUnspecified())
}
