package types

import (
	"fmt"

	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/samber/lo"
)

// NotificationStage identifies a staged member communication in the billing
// lifecycle. Dues stages fire at fixed day offsets relative to the
// schedule's next invoice date; pre-notification stages fire relative to a
// batch's execution date and are mandated by the scheme, not optional.
type NotificationStage string

const (
	NotificationStageUpcoming  NotificationStage = "UPCOMING"
	NotificationStageDue       NotificationStage = "DUE"
	NotificationStageOverdue7  NotificationStage = "OVERDUE_7"
	NotificationStageOverdue14 NotificationStage = "OVERDUE_14"
	NotificationStageOverdue30 NotificationStage = "OVERDUE_30"
	NotificationStageOverdue60 NotificationStage = "OVERDUE_60"

	NotificationStagePreNotifyFirst     NotificationStage = "PRE_NOTIFY_FRST"
	NotificationStagePreNotifyRecurring NotificationStage = "PRE_NOTIFY_RCUR"
)

func (s NotificationStage) String() string {
	return string(s)
}

func (s NotificationStage) Validate() error {
	allowed := []NotificationStage{
		NotificationStageUpcoming,
		NotificationStageDue,
		NotificationStageOverdue7,
		NotificationStageOverdue14,
		NotificationStageOverdue30,
		NotificationStageOverdue60,
		NotificationStagePreNotifyFirst,
		NotificationStagePreNotifyRecurring,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid notification stage").
			WithHint("Invalid notification stage").
			WithReportableDetails(map[string]any{
				"allowed_values": allowed,
				"provided_value": s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// DuesStageForOffset maps a signed day offset relative to next_invoice_date
// to its dues lifecycle stage.
func DuesStageForOffset(offset int) (NotificationStage, error) {
	switch offset {
	case -5:
		return NotificationStageUpcoming, nil
	case 0:
		return NotificationStageDue, nil
	case 7:
		return NotificationStageOverdue7, nil
	case 14:
		return NotificationStageOverdue14, nil
	case 30:
		return NotificationStageOverdue30, nil
	case 60:
		return NotificationStageOverdue60, nil
	default:
		return "", ierr.NewError(fmt.Sprintf("no notification stage for offset %d", offset)).
			WithHint("Unsupported notification stage offset").
			Mark(ierr.ErrValidation)
	}
}

// DefaultNotificationStageOffsets is the standard dues stage ladder
var DefaultNotificationStageOffsets = []int{-5, 0, 7, 14, 30, 60}

// PeriodKey builds the coverage-period idempotency key component used by the
// notification dispatch log: one dispatch per (schedule, stage, period).
func PeriodKey(coverageStart string) string {
	return fmt.Sprintf("period:%s", coverageStart)
}
