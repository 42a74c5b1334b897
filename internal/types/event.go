package types

import (
	"encoding/json"
	"time"
)

// Operator event names emitted on the billing lifecycle stream
const (
	EventScheduleManualReview  = "schedule.manual_review"
	EventScheduleSuspended     = "schedule.suspended"
	EventScheduleGracePeriod   = "schedule.grace_period"
	EventBatchCreated          = "batch.created"
	EventBatchFinalized        = "batch.finalized"
	EventBatchDeadlineWarning  = "batch.deadline_warning"
	EventFailureRecorded       = "failure.recorded"
	EventMandateCancelled      = "mandate.cancelled"
)

// OperatorEvent is one entry on the operator report stream
type OperatorEvent struct {
	ID        string          `json:"id"`
	EventName string          `json:"event_name"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewOperatorEvent creates an operator event, marshalling the payload
func NewOperatorEvent(eventName string, payload interface{}) (*OperatorEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OperatorEvent{
		ID:        GenerateUUIDWithPrefix("evt"),
		EventName: eventName,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}
