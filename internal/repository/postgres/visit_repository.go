package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"waypoint/internal/domain"
	"waypoint/internal/observability"
)

// VisitRepository implements domain.VisitRepository for PostgreSQL
type VisitRepository struct {
	db *sql.DB
}

// NewVisitRepository creates a new PostgreSQL visit repository
func NewVisitRepository(db *sql.DB) *VisitRepository {
	return &VisitRepository{db: db}
}

// Create appends one visit record
func (r *VisitRepository) Create(ctx context.Context, visit *domain.VisitRecord) error {
	defer observe("insert", "visits")()

	query := `
		INSERT INTO visits (visit_id, url, reason, duration_minutes, visited_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		visit.VisitID,
		visit.URL,
		visit.Reason,
		visit.Duration,
		visit.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create visit: %w", err)
	}
	return nil
}

// AttachReflection stores the reflection text on an existing visit. Repeat
// calls overwrite. Returns domain.ErrVisitNotFound for unknown visit IDs.
func (r *VisitRepository) AttachReflection(ctx context.Context, visitID, reflection string) error {
	defer observe("update", "visits")()

	query := `UPDATE visits SET reflection = $2 WHERE visit_id = $1`
	result, err := r.db.ExecContext(ctx, query, visitID, reflection)
	if err != nil {
		return fmt.Errorf("failed to attach reflection: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrVisitNotFound
	}
	return nil
}

// List returns every visit in insertion order
func (r *VisitRepository) List(ctx context.Context) ([]*domain.VisitRecord, error) {
	defer observe("select", "visits")()

	query := `
		SELECT visit_id, url, reason, duration_minutes, visited_at, reflection
		FROM visits
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	visits := []*domain.VisitRecord{}
	for rows.Next() {
		visit := &domain.VisitRecord{}
		var reflection sql.NullString
		err := rows.Scan(
			&visit.VisitID,
			&visit.URL,
			&visit.Reason,
			&visit.Duration,
			&visit.Timestamp,
			&reflection,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		if reflection.Valid {
			visit.Reflection = &reflection.String
		}
		visits = append(visits, visit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visits: %w", err)
	}
	return visits, nil
}

// observe times one query for the db latency histogram
func observe(operation, table string) func() {
	start := time.Now()
	return func() {
		observability.DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
