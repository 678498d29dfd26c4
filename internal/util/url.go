package util

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ResolveURL resolves href against base. Fragments are dropped so that
// "/business/x#deals" and "/business/x" resolve to the same page.
func ResolveURL(base, href string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("invalid href %q: %w", href, err)
	}
	resolved := baseURL.ResolveReference(ref)
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String(), nil
}

// RegistrableDomain returns the eTLD+1 of rawURL ("www.dealiem.com" -> "dealiem.com").
func RegistrableDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// IPs and single-label hosts such as localhost have no public suffix.
		return host
	}
	return domain
}

// SameSite reports whether both URLs share a registrable domain.
func SameSite(a, b string) bool {
	da := RegistrableDomain(a)
	return da != "" && da == RegistrableDomain(b)
}
