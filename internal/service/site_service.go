package service

import (
	"context"
	"fmt"

	"waypoint/internal/domain"
	"waypoint/internal/observability"
)

// SiteService keeps the durable watched-site list and the classifier's
// in-memory set in step.
type SiteService struct {
	sites      domain.SiteRepository
	classifier *SiteClassifier
}

func NewSiteService(sites domain.SiteRepository, classifier *SiteClassifier) *SiteService {
	return &SiteService{sites: sites, classifier: classifier}
}

// Bootstrap loads the persisted list into the classifier, seeding the store
// with the defaults on first run.
func (s *SiteService) Bootstrap(ctx context.Context, defaults []string) error {
	sites, err := s.sites.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load watched sites: %w", err)
	}

	if len(sites) == 0 && len(defaults) > 0 {
		if err := s.sites.Replace(ctx, defaults); err != nil {
			return fmt.Errorf("failed to seed watched sites: %w", err)
		}
		sites = defaults
		observability.Info("seeded default watched sites", "count", len(defaults))
	}

	s.classifier.SetSites(sites)
	return nil
}

// Update replaces the watched-site list. Every entry must normalize to a
// valid domain; the normalized list is persisted first and only then swapped
// into the classifier, so a storage failure leaves the gate on the old set.
func (s *SiteService) Update(ctx context.Context, sites []string) ([]string, error) {
	normalized := make([]string, 0, len(sites))
	seen := make(map[string]bool, len(sites))
	for _, raw := range sites {
		site, err := NormalizeSite(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSite, raw)
		}
		if seen[site] {
			continue
		}
		seen[site] = true
		normalized = append(normalized, site)
	}

	if err := s.sites.Replace(ctx, normalized); err != nil {
		return nil, err
	}
	s.classifier.SetSites(normalized)

	observability.Info("watched sites updated", "count", len(normalized))
	return normalized, nil
}

// List returns the current watched set.
func (s *SiteService) List() []string {
	return s.classifier.Sites()
}
