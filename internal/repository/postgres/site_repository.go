package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"waypoint/internal/domain"
)

// SiteRepository implements domain.SiteRepository for PostgreSQL. The
// watched-site list is tiny and always replaced whole, matching how the
// options view edits it.
type SiteRepository struct {
	db *sql.DB
	tm *TxManager
}

// NewSiteRepository creates a new PostgreSQL site repository
func NewSiteRepository(db *sql.DB) *SiteRepository {
	return &SiteRepository{db: db, tm: NewTxManager(db)}
}

// List returns the watched sites in their stored order
func (r *SiteRepository) List(ctx context.Context) ([]string, error) {
	defer observe("select", "watched_sites")()

	rows, err := r.db.QueryContext(ctx, `SELECT site FROM watched_sites ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	sites := []string{}
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sites: %w", err)
	}
	return sites, nil
}

// Replace swaps the whole watched-site list in one transaction
func (r *SiteRepository) Replace(ctx context.Context, sites []string) error {
	defer observe("replace", "watched_sites")()

	return r.tm.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM watched_sites`); err != nil {
			return fmt.Errorf("failed to clear sites: %w", err)
		}

		for i, site := range sites {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO watched_sites (position, site) VALUES ($1, $2)`, i, site)
			if err != nil {
				if IsUniqueViolation(err, "") {
					return fmt.Errorf("%w: %s", domain.ErrSiteExists, site)
				}
				return fmt.Errorf("failed to insert site: %w", err)
			}
		}
		return nil
	})
}
