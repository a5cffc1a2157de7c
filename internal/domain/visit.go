package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrVisitNotFound = errors.New("visit not found")
	ErrInvalidInput  = errors.New("invalid input")
)

// VisitRecord is one granted access to a watched site. Reflection stays nil
// until the user completes the post-visit reflection; it is the only field
// ever mutated after the record is written.
type VisitRecord struct {
	VisitID    string    `json:"visit_id"`
	URL        string    `json:"url"`
	Reason     string    `json:"reason"`
	Duration   int       `json:"duration"`
	Timestamp  time.Time `json:"timestamp"`
	Reflection *string   `json:"reflection,omitempty"`
}

// VisitRepository defines the interface for visit history data access
type VisitRepository interface {
	Create(ctx context.Context, visit *VisitRecord) error
	AttachReflection(ctx context.Context, visitID, reflection string) error
	List(ctx context.Context) ([]*VisitRecord, error)
}
