package dto

import (
	"github.com/duespay/duespay/internal/domain/notification"
)

// DispatchResponse represents one entry of the notification dispatch log
type DispatchResponse struct {
	*notification.Dispatch
}

// ListDispatchesResponse represents a schedule's dispatch history
type ListDispatchesResponse struct {
	Items []*DispatchResponse `json:"items"`
	Total int                 `json:"total"`
}

func ToListDispatchesResponse(dispatches []*notification.Dispatch) *ListDispatchesResponse {
	items := make([]*DispatchResponse, 0, len(dispatches))
	for _, d := range dispatches {
		items = append(items, &DispatchResponse{Dispatch: d})
	}
	return &ListDispatchesResponse{Items: items, Total: len(items)}
}
