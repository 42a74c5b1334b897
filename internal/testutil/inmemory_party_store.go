package testutil

import (
	"context"
	"sync"

	"github.com/duespay/duespay/internal/domain/party"
	ierr "github.com/duespay/duespay/internal/errors"
)

// InMemoryPartyStore implements party.Store
type InMemoryPartyStore struct {
	mu       sync.RWMutex
	parties  map[string]*party.Party
	mandates map[string]string // party id -> mandate id
}

// NewInMemoryPartyStore creates a new in-memory party store
func NewInMemoryPartyStore() *InMemoryPartyStore {
	return &InMemoryPartyStore{
		parties:  make(map[string]*party.Party),
		mandates: make(map[string]string),
	}
}

// Clear resets all stored data
func (s *InMemoryPartyStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parties = make(map[string]*party.Party)
	s.mandates = make(map[string]string)
}

// AddParty seeds a party fixture
func (s *InMemoryPartyStore) AddParty(p *party.Party) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parties[p.ID] = p
}

// SetMandateID seeds a party's mandate pointer
func (s *InMemoryPartyStore) SetMandateID(partyID, mandateID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mandates[partyID] = mandateID
}

func (s *InMemoryPartyStore) GetParty(ctx context.Context, partyID string) (*party.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.parties[partyID]
	if !ok {
		return nil, ierr.NewError("party not found").
			WithHint("The requested member does not exist").
			WithReportableDetails(map[string]any{"party_id": partyID}).
			Mark(ierr.ErrNotFound)
	}
	return p, nil
}

func (s *InMemoryPartyStore) GetPartyMandateID(ctx context.Context, partyID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mandates[partyID], nil
}
