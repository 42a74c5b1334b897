package dto

import (
	"github.com/duespay/duespay/internal/domain/batch"
	"github.com/duespay/duespay/internal/service"
	"github.com/go-playground/validator/v10"
)

// ProcessBatchResultsRequest carries the per-line execution outcomes reported
// by the bank for one batch
type ProcessBatchResultsRequest struct {
	Results []*service.BatchItemResult `json:"results" binding:"required,min=1"`
}

func (r *ProcessBatchResultsRequest) Validate() error {
	return validator.New().Struct(r)
}

// BatchResponse represents the batch response structure
type BatchResponse struct {
	*batch.Batch
}

// ListBatchesResponse represents a list of batches
type ListBatchesResponse struct {
	Items []*BatchResponse `json:"items"`
	Total int              `json:"total"`
}

func ToListBatchesResponse(batches []*batch.Batch) *ListBatchesResponse {
	items := make([]*BatchResponse, 0, len(batches))
	for _, b := range batches {
		items = append(items, &BatchResponse{Batch: b})
	}
	return &ListBatchesResponse{Items: items, Total: len(items)}
}
