package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDefaultConfig(t *testing.T) {
	assert.NoError(t, GetDefaultConfig().Validate())
}

func TestValidateLeadTimeOrdering(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Billing.FrstLeadBusinessDays = 1
	cfg.Billing.RcurLeadBusinessDays = 3

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "frst_lead_business_days")
}

func TestValidateLookaheadCoversUpcomingStage(t *testing.T) {
	// The -5 stage fires five days before the invoice date, so the invoice
	// has to exist by then
	cfg := GetDefaultConfig()
	cfg.Billing.InvoiceLookaheadDays = 3

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invoice_lookahead_days")

	cfg.Billing.InvoiceLookaheadDays = 5
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownStageOffset(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Notifications.StageOffsets = []int{-5, 3}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported notification stage offset")
}

func TestValidateRejectsBadHoliday(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Billing.Holidays = []string{"not-a-date"}

	assert.Error(t, cfg.Validate())
}
