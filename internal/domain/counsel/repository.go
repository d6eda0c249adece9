package counsel

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for run persistence
type Repository interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	List(ctx context.Context, limit int) ([]*Record, error)
}
