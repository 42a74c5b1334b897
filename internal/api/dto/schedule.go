package dto

import (
	"time"

	"github.com/duespay/duespay/internal/domain/schedule"
	"github.com/duespay/duespay/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// CreateScheduleRequest represents the request payload for creating a dues schedule
type CreateScheduleRequest struct {
	MemberID        string                  `json:"member_id" binding:"required" example:"party_0001"`
	Cadence         types.BillingCadence    `json:"cadence" binding:"required" example:"MONTHLY"`
	IntervalMonths  int                     `json:"interval_months,omitempty" example:"3"`
	AnchorDay       int                     `json:"anchor_day" binding:"required" example:"15"`
	Amount          decimal.Decimal         `json:"amount" binding:"required"`
	Currency        string                  `json:"currency" example:"EUR"`
	PaymentMethod   types.PaymentMethodType `json:"payment_method" binding:"required" example:"DIRECT_DEBIT"`
	MandateID       *string                 `json:"mandate_id,omitempty"`
	NextInvoiceDate *time.Time              `json:"next_invoice_date,omitempty"`
}

func (r *CreateScheduleRequest) Validate() error {
	return validator.New().Struct(r)
}

// ToSchedule converts the request to a domain schedule
func (r *CreateScheduleRequest) ToSchedule() *schedule.DuesSchedule {
	sched := &schedule.DuesSchedule{
		MemberID:       r.MemberID,
		Cadence:        r.Cadence,
		IntervalMonths: r.IntervalMonths,
		AnchorDay:      r.AnchorDay,
		Amount:         r.Amount,
		Currency:       r.Currency,
		PaymentMethod:  r.PaymentMethod,
		MandateID:      r.MandateID,
	}
	if r.NextInvoiceDate != nil {
		sched.NextInvoiceDate = types.DateOnly(*r.NextInvoiceDate)
	}
	return sched
}

// UpdateScheduleStatusRequest represents an operator-driven status change
type UpdateScheduleStatusRequest struct {
	Status types.ScheduleStatus `json:"status" binding:"required" example:"ACTIVE"`
	Reason string               `json:"reason,omitempty"`
}

// CreatePaymentPlanRequest parks a schedule in PAYMENT_PLAN with the agreed
// installments
type CreatePaymentPlanRequest struct {
	Installments []CreateInstallmentRequest `json:"installments" binding:"required,min=1,dive"`
}

type CreateInstallmentRequest struct {
	Amount  decimal.Decimal `json:"amount" binding:"required"`
	DueDate time.Time       `json:"due_date" binding:"required"`
}

// ToInstallments converts the request to domain installments
func (r *CreatePaymentPlanRequest) ToInstallments() []*schedule.Installment {
	installments := make([]*schedule.Installment, 0, len(r.Installments))
	for _, inst := range r.Installments {
		installments = append(installments, &schedule.Installment{
			Amount:  inst.Amount,
			DueDate: types.DateOnly(inst.DueDate),
		})
	}
	return installments
}

// ScheduleResponse represents the schedule response structure
type ScheduleResponse struct {
	*schedule.DuesSchedule
}

// ListSchedulesResponse represents a list of schedules
type ListSchedulesResponse struct {
	Items []*ScheduleResponse `json:"items"`
	Total int                 `json:"total"`
}

func ToListSchedulesResponse(schedules []*schedule.DuesSchedule) *ListSchedulesResponse {
	items := make([]*ScheduleResponse, 0, len(schedules))
	for _, sched := range schedules {
		items = append(items, &ScheduleResponse{DuesSchedule: sched})
	}
	return &ListSchedulesResponse{Items: items, Total: len(items)}
}

// InstallmentResponse represents one payment-plan installment
type InstallmentResponse struct {
	*schedule.Installment
}

// ListInstallmentsResponse represents a schedule's payment plan
type ListInstallmentsResponse struct {
	Items []*InstallmentResponse `json:"items"`
	Total int                    `json:"total"`
}

func ToListInstallmentsResponse(installments []*schedule.Installment) *ListInstallmentsResponse {
	items := make([]*InstallmentResponse, 0, len(installments))
	for _, inst := range installments {
		items = append(items, &InstallmentResponse{Installment: inst})
	}
	return &ListInstallmentsResponse{Items: items, Total: len(items)}
}
