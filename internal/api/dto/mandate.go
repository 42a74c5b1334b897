package dto

import (
	"time"

	"github.com/duespay/duespay/internal/domain/mandate"
	"github.com/duespay/duespay/internal/types"
	"github.com/go-playground/validator/v10"
)

// CreateMandateRequest represents the request payload for creating a mandate
type CreateMandateRequest struct {
	MemberID      string    `json:"member_id" binding:"required" example:"party_0001"`
	IBAN          string    `json:"iban" binding:"required" example:"DE89370400440532013000"`
	BIC           string    `json:"bic,omitempty" example:"COBADEFFXXX"`
	AccountHolder string    `json:"account_holder" binding:"required" example:"Erika Mustermann"`
	SignDate      time.Time `json:"sign_date" binding:"required"`
}

func (r *CreateMandateRequest) Validate() error {
	return validator.New().Struct(r)
}

// ToMandate converts the request to a domain mandate
func (r *CreateMandateRequest) ToMandate() *mandate.Mandate {
	return &mandate.Mandate{
		MemberID:      r.MemberID,
		IBAN:          r.IBAN,
		BIC:           r.BIC,
		AccountHolder: r.AccountHolder,
		SignDate:      types.DateOnly(r.SignDate),
	}
}

// CancelMandateRequest carries the revocation reason
type CancelMandateRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// MandateResponse represents the mandate response structure
type MandateResponse struct {
	*mandate.Mandate

	// NextSequenceType is the classification the next collection would carry
	NextSequenceType types.SequenceType `json:"next_sequence_type"`
}

func ToMandateResponse(m *mandate.Mandate) *MandateResponse {
	return &MandateResponse{Mandate: m, NextSequenceType: m.NextSequenceType()}
}

// ListMandatesResponse represents a list of mandates
type ListMandatesResponse struct {
	Items []*MandateResponse `json:"items"`
	Total int                `json:"total"`
}

func ToListMandatesResponse(mandates []*mandate.Mandate) *ListMandatesResponse {
	items := make([]*MandateResponse, 0, len(mandates))
	for _, m := range mandates {
		items = append(items, ToMandateResponse(m))
	}
	return &ListMandatesResponse{Items: items, Total: len(items)}
}
