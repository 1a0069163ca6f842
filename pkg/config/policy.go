package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// NavigationPolicy is the compiled form of NavigationConfig, matched against
// the hostname of every navigate target.
type NavigationPolicy struct {
	allowed []glob.Glob
	denied  []glob.Glob
}

// Policy compiles the navigation config's glob patterns.
func (n NavigationConfig) Policy() (*NavigationPolicy, error) {
	p := &NavigationPolicy{}

	for _, pattern := range n.AllowedDomains {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed domain pattern '%s': %w", pattern, err)
		}
		p.allowed = append(p.allowed, g)
	}

	for _, pattern := range n.DeniedDomains {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid denied domain pattern '%s': %w", pattern, err)
		}
		p.denied = append(p.denied, g)
	}

	return p, nil
}

// AllowsHost reports whether the policy permits navigation to the hostname.
// Denied patterns take precedence; an empty allow list permits every host
// not denied.
func (p *NavigationPolicy) AllowsHost(host string) bool {
	host = strings.ToLower(host)

	for _, pattern := range p.denied {
		if pattern.Match(host) {
			return false
		}
	}

	if len(p.allowed) == 0 {
		return true
	}

	for _, pattern := range p.allowed {
		if pattern.Match(host) {
			return true
		}
	}

	return false
}

// AllowsURL applies AllowsHost to the URL's hostname. Unparseable URLs are
// rejected.
func (p *NavigationPolicy) AllowsURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return false
	}
	return p.AllowsHost(u.Hostname())
}
