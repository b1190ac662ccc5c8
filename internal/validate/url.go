package validate

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
)

// URL validation errors
var (
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrDisallowedScheme = errors.New("URL scheme not allowed")
	ErrPrivateHost      = errors.New("URL host is private or loopback")
)

// EndpointConstraints defines validation constraints for upstream service URLs.
type EndpointConstraints struct {
	AllowedSchemes []string // e.g., []string{"https"}
	BlockPrivate   bool     // Reject localhost and literal private/loopback IPs
	MaxLength      int      // Maximum URL length (0 = no limit)
}

// ProductionEndpoint only allows HTTPS to public hosts.
var ProductionEndpoint = EndpointConstraints{
	AllowedSchemes: []string{"https"},
	BlockPrivate:   true,
	MaxLength:      2048,
}

// DevelopmentEndpoint allows plain HTTP and local hosts, e.g. a local model server.
var DevelopmentEndpoint = EndpointConstraints{
	AllowedSchemes: []string{"https", "http"},
	MaxLength:      2048,
}

// EndpointURL validates the base URL of an upstream service.
// It returns the URL with surrounding whitespace and trailing slashes removed.
// Hostnames are never resolved; only literal addresses are checked.
func EndpointURL(raw string, constraints EndpointConstraints) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmpty
	}
	if constraints.MaxLength > 0 && len(raw) > constraints.MaxLength {
		return "", fmt.Errorf("%w: URL exceeds %d characters", ErrStringTooLong, constraints.MaxLength)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if u.User != nil {
		return "", fmt.Errorf("%w: credentials in URL", ErrInvalidURL)
	}

	scheme := strings.ToLower(u.Scheme)
	if !slices.Contains(constraints.AllowedSchemes, scheme) {
		return "", fmt.Errorf("%w: %s", ErrDisallowedScheme, u.Scheme)
	}

	if constraints.BlockPrivate && isPrivateHost(u.Hostname()) {
		return "", fmt.Errorf("%w: %s", ErrPrivateHost, u.Hostname())
	}

	return strings.TrimRight(raw, "/"), nil
}

func isPrivateHost(hostname string) bool {
	lower := strings.ToLower(hostname)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return true
	}
	ip := net.ParseIP(hostname)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}
