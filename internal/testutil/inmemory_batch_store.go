package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/duespay/duespay/internal/domain/batch"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/types"
)

// InMemoryBatchStore implements batch.Repository. Invoice markers are
// claimed under one lock so concurrent composition behaves like the unique
// key in postgres: the second claim fails and nothing of that batch is kept.
type InMemoryBatchStore struct {
	*InMemoryStore[*batch.Batch]
	mu           sync.Mutex
	transactions map[string][]*batch.Transaction
	markers      map[string]string // invoice_id -> batch_id
}

// NewInMemoryBatchStore creates a new in-memory batch repository
func NewInMemoryBatchStore() *InMemoryBatchStore {
	return &InMemoryBatchStore{
		InMemoryStore: NewInMemoryStore[*batch.Batch](),
		transactions:  make(map[string][]*batch.Transaction),
		markers:       make(map[string]string),
	}
}

// Clear resets all stored data
func (m *InMemoryBatchStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InMemoryStore.Clear()
	m.transactions = make(map[string][]*batch.Transaction)
	m.markers = make(map[string]string)
}

func (m *InMemoryBatchStore) CreateWithTransactions(ctx context.Context, b *batch.Batch, transactions []*batch.Transaction) error {
	if b == nil {
		return ierr.NewError("batch cannot be nil").
			WithHint("Batch cannot be nil").
			Mark(ierr.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// All markers must be claimable before anything is written
	for _, t := range transactions {
		if batchID, claimed := m.markers[t.InvoiceID]; claimed {
			return ierr.NewError("invoice already claimed by an open batch").
				WithHint("Invoice is already claimed by an open batch").
				WithReportableDetails(map[string]any{
					"invoice_id": t.InvoiceID,
					"batch_id":   batchID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
	}

	if err := m.InMemoryStore.Create(ctx, b.ID, b); err != nil {
		return ierr.WithError(err).
			WithHint("Batch already exists").
			Mark(ierr.ErrAlreadyExists)
	}

	m.transactions[b.ID] = transactions
	for _, t := range transactions {
		m.markers[t.InvoiceID] = b.ID
	}
	return nil
}

func (m *InMemoryBatchStore) Get(ctx context.Context, id string) (*batch.Batch, error) {
	b, err := m.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("batch not found").
			WithHint("The requested batch does not exist").
			WithReportableDetails(map[string]any{"batch_id": id}).
			Mark(ierr.ErrNotFound)
	}

	txns, err := m.ListTransactions(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Transactions = txns
	return b, nil
}

func (m *InMemoryBatchStore) Update(ctx context.Context, b *batch.Batch) error {
	if err := m.InMemoryStore.Update(ctx, b.ID, b); err != nil {
		return ierr.NewError("batch not found").
			WithHint("The requested batch does not exist").
			WithReportableDetails(map[string]any{"batch_id": b.ID}).
			Mark(ierr.ErrNotFound)
	}

	if !b.BatchStatus.IsOpen() {
		m.mu.Lock()
		for invoiceID, batchID := range m.markers {
			if batchID == b.ID {
				delete(m.markers, invoiceID)
			}
		}
		m.mu.Unlock()
	}
	return nil
}

func batchFilterFn(ctx context.Context, b *batch.Batch, filter interface{}) bool {
	if b.Status == types.StatusDeleted {
		return false
	}
	f, ok := filter.(*types.BatchFilter)
	if !ok || f == nil {
		return true
	}
	if len(f.BatchIDs) > 0 {
		found := false
		for _, id := range f.BatchIDs {
			if id == b.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.BatchStatus != nil && b.BatchStatus != *f.BatchStatus {
		return false
	}
	return true
}

func (m *InMemoryBatchStore) List(ctx context.Context, filter *types.BatchFilter) ([]*batch.Batch, error) {
	return m.InMemoryStore.List(ctx, filter, batchFilterFn,
		func(i, j *batch.Batch) bool {
			return i.CreatedAt.After(j.CreatedAt)
		})
}

func (m *InMemoryBatchStore) Count(ctx context.Context, filter *types.BatchFilter) (int, error) {
	return m.InMemoryStore.Count(ctx, filter, batchFilterFn)
}

func (m *InMemoryBatchStore) ListTransactions(ctx context.Context, batchID string) ([]*batch.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	txns := make([]*batch.Transaction, len(m.transactions[batchID]))
	copy(txns, m.transactions[batchID])
	sort.Slice(txns, func(i, j int) bool {
		return txns[i].LineIndex < txns[j].LineIndex
	})
	return txns, nil
}

func (m *InMemoryBatchStore) ListOpenInvoiceIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.markers))
	for invoiceID := range m.markers {
		out = append(out, invoiceID)
	}
	sort.Strings(out)
	return out, nil
}
