package dto

import (
	"github.com/duespay/duespay/internal/domain/failure"
	"github.com/duespay/duespay/internal/service"
	"github.com/go-playground/validator/v10"
)

// IngestReturnsRequest is the bank status-report payload for one batch
type IngestReturnsRequest struct {
	Returns []*service.BankReturn `json:"returns" binding:"required,min=1"`
}

func (r *IngestReturnsRequest) Validate() error {
	return validator.New().Struct(r)
}

// ResolveFailureRequest closes a failure record after manual review
type ResolveFailureRequest struct {
	Notes string `json:"notes" binding:"required"`
	// ReactivateSchedule returns the schedule to ACTIVE; the only path out
	// of manual review
	ReactivateSchedule bool `json:"reactivate_schedule"`
}

// FailureResponse represents the failure record response structure
type FailureResponse struct {
	*failure.Record
}

// ListFailuresResponse represents a list of failure records
type ListFailuresResponse struct {
	Items []*FailureResponse `json:"items"`
	Total int                `json:"total"`
}

func ToListFailuresResponse(records []*failure.Record) *ListFailuresResponse {
	items := make([]*FailureResponse, 0, len(records))
	for _, r := range records {
		items = append(items, &FailureResponse{Record: r})
	}
	return &ListFailuresResponse{Items: items, Total: len(items)}
}
