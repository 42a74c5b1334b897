package party

import "context"

// Party is the engine's read model of a member in the external member store
type Party struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Store is the read-only interface to the external member/CRM data store
type Store interface {
	// GetParty returns a member by id
	GetParty(ctx context.Context, partyID string) (*Party, error)

	// GetPartyMandateID returns the member's current mandate id, or empty if
	// none is on file
	GetPartyMandateID(ctx context.Context, partyID string) (string, error)
}
