package failure

import (
	"testing"

	"github.com/duespay/duespay/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code         string
		wantType     types.FailureType
		wantSeverity types.FailureSeverity
	}{
		{"AM04", types.FailureTypeInsufficientFunds, types.FailureSeverityMedium},
		{"AC04", types.FailureTypeAccountClosed, types.FailureSeverityHigh},
		{"AC13", types.FailureTypeAccountClosed, types.FailureSeverityHigh},
		{"AC01", types.FailureTypeNoSuchAccount, types.FailureSeverityHigh},
		{"AC06", types.FailureTypeAccountBlocked, types.FailureSeverityHigh},
		{"SL01", types.FailureTypeAccountBlocked, types.FailureSeverityHigh},
		{"MD01", types.FailureTypeMandateInvalid, types.FailureSeverityCritical},
		{"MD02", types.FailureTypeMandateCancelled, types.FailureSeverityCritical},
		{"MD07", types.FailureTypeDeceased, types.FailureSeverityCritical},
		{"MS02", types.FailureTypeStoppedByPayer, types.FailureSeverityMedium},
		{"MS03", types.FailureTypeStoppedByPayer, types.FailureSeverityMedium},
		{"RC01", types.FailureTypeIncorrectDetails, types.FailureSeverityMedium},
		{"BE05", types.FailureTypeIncorrectDetails, types.FailureSeverityMedium},
		{"AG01", types.FailureTypeIncorrectDetails, types.FailureSeverityMedium},
		{"AG02", types.FailureTypeIncorrectDetails, types.FailureSeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			gotType, gotSeverity := Classify(tt.code)
			assert.Equal(t, tt.wantType, gotType)
			assert.Equal(t, tt.wantSeverity, gotSeverity)
		})
	}
}

func TestClassifyUnknownCode(t *testing.T) {
	for _, code := range []string{"", "XX99", "am04", "FF05"} {
		gotType, gotSeverity := Classify(code)
		assert.Equal(t, types.FailureTypeOther, gotType, "code %q", code)
		assert.Equal(t, types.FailureSeverityLow, gotSeverity, "code %q", code)
	}
}

func TestTerminalTypesRevokeMandates(t *testing.T) {
	terminal := []types.FailureType{
		types.FailureTypeAccountClosed,
		types.FailureTypeNoSuchAccount,
		types.FailureTypeMandateCancelled,
		types.FailureTypeMandateInvalid,
		types.FailureTypeDeceased,
	}
	for _, ft := range terminal {
		assert.True(t, ft.IsTerminal(), "%s", ft)
	}

	nonTerminal := []types.FailureType{
		types.FailureTypeInsufficientFunds,
		types.FailureTypeAccountBlocked,
		types.FailureTypeStoppedByPayer,
		types.FailureTypeIncorrectDetails,
		types.FailureTypeOther,
	}
	for _, ft := range nonTerminal {
		assert.False(t, ft.IsTerminal(), "%s", ft)
	}
}
