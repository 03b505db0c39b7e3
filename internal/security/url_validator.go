// Package security provides security utilities for input validation.
package security

import (
	"errors"
	"net/url"
	"strings"
)

// URL validation errors.
var (
	ErrInvalidURL    = errors.New("invalid URL")
	ErrBlockedScheme = errors.New("URL scheme not allowed")
	ErrBlockedHost   = errors.New("host not allowed")
	ErrEmptyPath     = errors.New("URL has no path to a post")
)

// AllowedSchemes defines the permitted URL schemes.
var AllowedSchemes = map[string]bool{
	"http":  true,
	"https": true,
}

// allowedHosts is the closed set of hosts the service will navigate to.
// Everything else is rejected outright: this service fetches posts from
// one platform, and an open navigation target would be an SSRF hole the
// moment someone points it at an internal address.
var allowedHosts = map[string]bool{
	"x.com":              true,
	"www.x.com":          true,
	"mobile.x.com":       true,
	"twitter.com":        true,
	"www.twitter.com":    true,
	"mobile.twitter.com": true,
}

// ValidateTargetURL checks that a URL is a syntactically valid absolute
// URL pointing at an allow-listed host. Host matching is exact and
// case-insensitive; no suffix matching, so "evilx.com" and
// "x.com.evil.example" both fail.
func ValidateTargetURL(rawURL string) error {
	if rawURL == "" {
		return ErrInvalidURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}
	if !parsed.IsAbs() {
		return ErrInvalidURL
	}

	if !AllowedSchemes[strings.ToLower(parsed.Scheme)] {
		return ErrBlockedScheme
	}

	hostname := strings.ToLower(parsed.Hostname())
	if hostname == "" {
		return ErrInvalidURL
	}
	if !allowedHosts[hostname] {
		return ErrBlockedHost
	}

	// A bare host is not a post link.
	if parsed.Path == "" || parsed.Path == "/" {
		return ErrEmptyPath
	}

	return nil
}

// AllowedHostList returns the allow-listed hosts, for logging and
// error messages.
func AllowedHostList() []string {
	hosts := make([]string, 0, len(allowedHosts))
	for h := range allowedHosts {
		hosts = append(hosts, h)
	}
	return hosts
}
