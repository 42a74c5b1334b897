package failure

import (
	"context"

	"github.com/duespay/duespay/internal/types"
)

// Repository defines the interface for failure record persistence.
// Records are append-only; Update exists only for explicit resolution.
type Repository interface {
	Create(ctx context.Context, record *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Update(ctx context.Context, record *Record) error
	List(ctx context.Context, filter *types.FailureFilter) ([]*Record, error)
	Count(ctx context.Context, filter *types.FailureFilter) (int, error)
}
