package service

import (
	"context"
	"errors"

	"waypoint/internal/domain"
)

// LedgerService owns the append-only visit history. Records are never
// deleted here; the single allowed mutation is attaching a reflection.
type LedgerService struct {
	visits domain.VisitRepository
}

func NewLedgerService(visits domain.VisitRepository) *LedgerService {
	return &LedgerService{visits: visits}
}

// Record appends one granted visit.
func (s *LedgerService) Record(ctx context.Context, visit *domain.VisitRecord) error {
	if visit.VisitID == "" || visit.URL == "" {
		return domain.ErrInvalidInput
	}
	return s.visits.Create(ctx, visit)
}

// AttachReflection stores the post-visit reflection on an existing record.
// An unknown visitID reports found == false without an error; a second call
// for the same visit overwrites (last write wins).
func (s *LedgerService) AttachReflection(ctx context.Context, visitID, reflection string) (bool, error) {
	err := s.visits.AttachReflection(ctx, visitID, reflection)
	if errors.Is(err, domain.ErrVisitNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// History returns the full visit collection in insertion order. Filtering by
// site and grouping by day are presentation concerns and stay in the views.
func (s *LedgerService) History(ctx context.Context) ([]*domain.VisitRecord, error) {
	return s.visits.List(ctx)
}
