package testutil

import (
	"context"
	"fmt"
	"sync"
)

// RecordedDispatch captures one call to the notification transport
type RecordedDispatch struct {
	MemberID string
	Stage    string
	Details  map[string]string
}

// RecordingTransport implements notification.Transport and records every
// dispatch for assertions. Set Err to simulate transport failures.
type RecordingTransport struct {
	mu         sync.Mutex
	dispatches []RecordedDispatch
	seq        int

	Err error
}

// NewRecordingTransport creates a new recording transport
func NewRecordingTransport() *RecordingTransport {
	return &RecordingTransport{}
}

func (t *RecordingTransport) Dispatch(ctx context.Context, memberID string, stage string, details map[string]string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Err != nil {
		return "", t.Err
	}

	t.dispatches = append(t.dispatches, RecordedDispatch{
		MemberID: memberID,
		Stage:    stage,
		Details:  details,
	})
	t.seq++
	return fmt.Sprintf("dlv_%06d", t.seq), nil
}

// GetDispatches returns all recorded dispatches
func (t *RecordingTransport) GetDispatches() []RecordedDispatch {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RecordedDispatch, len(t.dispatches))
	copy(out, t.dispatches)
	return out
}

// Clear resets recorded dispatches
func (t *RecordingTransport) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dispatches = nil
	t.seq = 0
	t.Err = nil
}
