// Package schedule is the installment schedule engine: pure functions
// that generate due-date schedules from a cadence, split a total amount
// across installments and validate a plan before submission. The engine
// holds no state and does no I/O; callers own the plan records and must
// serialize edits to any one plan themselves.
package schedule

import (
	"fmt"
	"time"

	"github.com/classforge/feeplan-api/internal/domain"
)

// Generate builds a schedule of count installments for the cadence,
// anchored off ref (normally "now"). All amounts start at zero; amount
// assignment is a separate step, either DistributeEvenly or a manual
// edit in the form.
//
// The count must be 1..cadence max, and exactly 1 for the fixed
// cadences (yearly, one-time). Out-of-range counts are rejected rather
// than clamped, so a miswired form fails loudly.
func Generate(cadence domain.InstallmentCadence, count int, ref time.Time) ([]domain.Installment, error) {
	if !cadence.Valid() {
		return nil, &domain.ErrValidation{Field: "cadence", Message: fmt.Sprintf("unknown cadence %q", cadence)}
	}
	if cadence.Fixed() && count != 1 {
		return nil, &domain.ErrValidation{
			Field:   "installment_count",
			Message: fmt.Sprintf("cadence %s always has exactly 1 installment", cadence),
		}
	}
	if count < 1 || count > cadence.MaxInstallments() {
		return nil, &domain.ErrValidation{
			Field:   "installment_count",
			Message: fmt.Sprintf("installment count must be between 1 and %d for cadence %s", cadence.MaxInstallments(), cadence),
		}
	}

	start := anchor(cadence, ref)
	installments := make([]domain.Installment, count)
	for i := 0; i < count; i++ {
		installments[i] = domain.Installment{
			SequenceNumber: i + 1,
			DueDate:        domain.DateOf(addMonths(start, periodMonths(cadence)*i)),
			Amount:         0,
		}
	}
	return installments, nil
}

// DistributeEvenly splits total across the schedule with integer
// division. The first installment takes the base share plus the whole
// remainder; every other installment takes exactly the base share, so
// the amounts always sum to total. Putting the remainder on installment
// #1 (rather than spreading it or putting it last) is inherited source
// behavior that downstream reporting depends on.
//
// An empty schedule or a zero total is a deliberate no-op, not an
// error: the input is returned unchanged.
func DistributeEvenly(total int64, installments []domain.Installment) []domain.Installment {
	if len(installments) == 0 || total == 0 {
		return installments
	}

	count := int64(len(installments))
	base := total / count
	remainder := total - base*count

	out := make([]domain.Installment, len(installments))
	copy(out, installments)
	for i := range out {
		out[i].Amount = base
	}
	out[0].Amount = base + remainder
	return out
}

// ResetAmounts zeroes every installment amount, keeping sequence numbers
// and due dates. Called whenever the component's total changes so stale
// splits never survive a new total.
func ResetAmounts(installments []domain.Installment) []domain.Installment {
	out := make([]domain.Installment, len(installments))
	copy(out, installments)
	for i := range out {
		out[i].Amount = 0
	}
	return out
}

// anchor computes the first due date for the cadence from the reference
// date. Periodic cadences start at the next period boundary; monthly and
// custom start one month out; one-time is due on the reference date.
func anchor(cadence domain.InstallmentCadence, ref time.Time) time.Time {
	y, m, _ := ref.UTC().Date()
	month := int(m) - 1 // 0-indexed

	switch cadence {
	case domain.CadenceQuarterly:
		// first day of the next quarter boundary month (Jan/Apr/Jul/Oct)
		next := (month/3 + 1) * 3
		return time.Date(y, time.Month(next+1), 1, 0, 0, 0, 0, time.UTC)
	case domain.CadenceHalfYearly:
		if month < 6 {
			return time.Date(y, time.July, 1, 0, 0, 0, 0, time.UTC)
		}
		return time.Date(y+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	case domain.CadenceYearly:
		return time.Date(y+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	case domain.CadenceOneTime:
		return domain.DateOf(ref).Time
	default: // monthly, custom
		return addMonths(domain.DateOf(ref).Time, 1)
	}
}

// periodMonths is the spacing between consecutive due dates.
func periodMonths(cadence domain.InstallmentCadence) int {
	switch cadence {
	case domain.CadenceQuarterly:
		return 3
	case domain.CadenceHalfYearly:
		return 6
	case domain.CadenceYearly:
		return 12
	case domain.CadenceOneTime:
		return 0
	default: // monthly, custom
		return 1
	}
}

// addMonths shifts t by whole months, clamping the day to the last day
// of the target month (Jan 31 + 1 month = Feb 28/29, not Mar 2/3 as
// time.AddDate would give).
func addMonths(t time.Time, months int) time.Time {
	if months == 0 {
		return t
	}
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, time.UTC)
}
