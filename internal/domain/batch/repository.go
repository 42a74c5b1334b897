package batch

import (
	"context"

	"github.com/duespay/duespay/internal/types"
)

// Repository defines the interface for batch persistence.
//
// CreateWithTransactions must persist the batch, its transactions and the
// in-batch markers for every referenced invoice atomically: two concurrent
// composition runs must never both claim the same invoice.
type Repository interface {
	CreateWithTransactions(ctx context.Context, b *Batch, transactions []*Transaction) error
	Get(ctx context.Context, id string) (*Batch, error)
	Update(ctx context.Context, b *Batch) error
	List(ctx context.Context, filter *types.BatchFilter) ([]*Batch, error)
	Count(ctx context.Context, filter *types.BatchFilter) (int, error)

	// ListTransactions returns the batch's lines ordered by line index
	ListTransactions(ctx context.Context, batchID string) ([]*Transaction, error)

	// ListOpenInvoiceIDs returns every invoice id currently claimed by an
	// open batch; composition excludes these from selection
	ListOpenInvoiceIDs(ctx context.Context) ([]string, error)
}
