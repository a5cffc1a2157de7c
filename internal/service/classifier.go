package service

import (
	"net/url"
	"regexp"
	"strings"
	"sync"

	"waypoint/internal/domain"
)

var domainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9\-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9\-]{0,61}[a-z0-9])?)*$`)

// SiteClassifier maps URLs onto the watched-site list by hostname suffix.
// A hostname H matches a site S when H == S or H ends with "."+S, so
// "mobile.twitter.com" matches "twitter.com" but "eviltwitter.com" does not.
type SiteClassifier struct {
	mu    sync.RWMutex
	sites []string
}

// NewSiteClassifier creates a classifier over the given watched sites.
func NewSiteClassifier(sites []string) *SiteClassifier {
	c := &SiteClassifier{}
	c.SetSites(sites)
	return c
}

// Classify returns the watched site a URL belongs to. Malformed URLs and
// unmatched hostnames both report ok == false; this never errors.
func (c *SiteClassifier) Classify(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	hostname := strings.ToLower(u.Hostname())

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, site := range c.sites {
		if hostname == site || strings.HasSuffix(hostname, "."+site) {
			return site, true
		}
	}
	return "", false
}

// SetSites replaces the watched set. Entries are normalized and invalid or
// duplicate entries dropped; order of first appearance is kept.
func (c *SiteClassifier) SetSites(sites []string) {
	normalized := make([]string, 0, len(sites))
	seen := make(map[string]bool, len(sites))
	for _, s := range sites {
		site, err := NormalizeSite(s)
		if err != nil || seen[site] {
			continue
		}
		seen[site] = true
		normalized = append(normalized, site)
	}

	c.mu.Lock()
	c.sites = normalized
	c.mu.Unlock()
}

// Sites returns a copy of the current watched set.
func (c *SiteClassifier) Sites() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.sites...)
}

// NormalizeSite canonicalizes a user-entered domain: lowercase, scheme and
// path stripped. Returns domain.ErrInvalidSite when the remainder is not a
// plausible registrable domain.
func NormalizeSite(raw string) (string, error) {
	site := strings.ToLower(strings.TrimSpace(raw))
	site = strings.TrimPrefix(site, "https://")
	site = strings.TrimPrefix(site, "http://")
	if i := strings.IndexByte(site, '/'); i >= 0 {
		site = site[:i]
	}

	if !strings.Contains(site, ".") || !domainPattern.MatchString(site) {
		return "", domain.ErrInvalidSite
	}
	return site, nil
}
