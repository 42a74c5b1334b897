package mandate

import (
	"context"

	"github.com/duespay/duespay/internal/types"
)

// Repository defines the interface for mandate persistence
type Repository interface {
	Create(ctx context.Context, mandate *Mandate) error
	Get(ctx context.Context, id string) (*Mandate, error)
	Update(ctx context.Context, mandate *Mandate) error
	List(ctx context.Context, filter *types.MandateFilter) ([]*Mandate, error)
	Count(ctx context.Context, filter *types.MandateFilter) (int, error)

	// GetActiveByMember returns the member's ACTIVE mandate if one exists
	GetActiveByMember(ctx context.Context, memberID string) (*Mandate, error)
}
