package domain

import (
	"context"
	"errors"
)

var (
	ErrSiteExists   = errors.New("site already registered")
	ErrInvalidSite  = errors.New("not a valid domain")
	ErrSiteNotFound = errors.New("site not registered")
)

// SiteRepository defines the interface for the watched-site list.
// The list is small and always read whole; Replace swaps it atomically.
type SiteRepository interface {
	List(ctx context.Context) ([]string, error)
	Replace(ctx context.Context, sites []string) error
}
