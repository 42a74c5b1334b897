package failure

import "github.com/duespay/duespay/internal/types"

// classification pairs a taxonomy entry with its default severity
type classification struct {
	Type     types.FailureType
	Severity types.FailureSeverity
}

// returnCodeTable is the closed mapping from scheme return codes to the
// failure taxonomy. Codes follow the ISO 20022 external reason code list as
// used in pain.002 status reports.
var returnCodeTable = map[string]classification{
	// funds
	"AM04": {types.FailureTypeInsufficientFunds, types.FailureSeverityMedium},

	// account state
	"AC04": {types.FailureTypeAccountClosed, types.FailureSeverityHigh},
	"AC13": {types.FailureTypeAccountClosed, types.FailureSeverityHigh},
	"AC01": {types.FailureTypeNoSuchAccount, types.FailureSeverityHigh},
	"AC06": {types.FailureTypeAccountBlocked, types.FailureSeverityHigh},
	"SL01": {types.FailureTypeAccountBlocked, types.FailureSeverityHigh},

	// mandate state
	"MD01": {types.FailureTypeMandateInvalid, types.FailureSeverityCritical},
	"MD02": {types.FailureTypeMandateCancelled, types.FailureSeverityCritical},
	"MD07": {types.FailureTypeDeceased, types.FailureSeverityCritical},

	// payer action
	"MS02": {types.FailureTypeStoppedByPayer, types.FailureSeverityMedium},
	"MS03": {types.FailureTypeStoppedByPayer, types.FailureSeverityMedium},

	// data quality
	"RC01": {types.FailureTypeIncorrectDetails, types.FailureSeverityMedium},
	"BE05": {types.FailureTypeIncorrectDetails, types.FailureSeverityMedium},
	"AG01": {types.FailureTypeIncorrectDetails, types.FailureSeverityMedium},
	"AG02": {types.FailureTypeIncorrectDetails, types.FailureSeverityMedium},
}

// Classify maps a bank return code to its taxonomy entry and default
// severity. Pure and deterministic; unknown codes map to Other with low
// severity rather than raising.
func Classify(returnCode string) (types.FailureType, types.FailureSeverity) {
	if c, ok := returnCodeTable[returnCode]; ok {
		return c.Type, c.Severity
	}
	return types.FailureTypeOther, types.FailureSeverityLow
}
