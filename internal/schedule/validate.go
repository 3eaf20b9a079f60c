package schedule

import (
	"fmt"
	"strings"

	"github.com/classforge/feeplan-api/internal/domain"
)

// MaxComponentAmount is the ceiling on a single component's declared
// total, in whole rupees.
const MaxComponentAmount int64 = 1_000_000

// ValidatePlan runs every submission rule against the component set of a
// fee plan and returns all failures at once, each attributable to a
// component and field. An empty result means the plan may be submitted.
//
// The sum rules deliberately require exact equality between the
// installment sum and the declared total: sum_exceeds_total and
// sum_below_total together leave no slack. The source system enforced
// both comparators separately (possibly by accident), and callers depend
// on the combined effect.
func ValidatePlan(components []domain.FeeComponentPlan) []domain.Violation {
	var violations []domain.Violation

	if len(components) == 0 {
		return []domain.Violation{{
			Rule:    domain.RuleNoComponents,
			Field:   "components",
			Message: "a fee plan must have at least one fee component",
		}}
	}

	seen := make(map[string]bool, len(components))
	for i := range components {
		c := &components[i]

		if seen[c.FeeTypeID] {
			violations = append(violations, domain.Violation{
				FeeTypeID: c.FeeTypeID,
				Rule:      domain.RuleDuplicateFeeType,
				Field:     "fee_type_id",
				Message:   "this fee type appears more than once in the plan",
			})
		}
		seen[c.FeeTypeID] = true

		violations = append(violations, validateComponent(c)...)
	}
	return violations
}

// validateComponent checks a single component's configuration and
// schedule against its declared total.
func validateComponent(c *domain.FeeComponentPlan) []domain.Violation {
	var violations []domain.Violation

	fail := func(rule, field, message string) {
		violations = append(violations, domain.Violation{
			FeeTypeID: c.FeeTypeID,
			Rule:      rule,
			Field:     field,
			Message:   message,
		})
	}

	if strings.TrimSpace(c.FeeTypeID) == "" {
		fail(domain.RuleFeeTypeRequired, "fee_type_id", "every component must reference a fee type")
	}

	if !c.Cadence.Valid() {
		fail(domain.RuleUnknownCadence, "cadence", fmt.Sprintf("unknown cadence %q", c.Cadence))
	} else if c.Cadence.Fixed() && c.InstallmentCount != 1 {
		fail(domain.RuleCadenceBounds, "installment_count",
			fmt.Sprintf("cadence %s always has exactly 1 installment", c.Cadence))
	} else if c.InstallmentCount < 1 || c.InstallmentCount > c.Cadence.MaxInstallments() {
		fail(domain.RuleCadenceBounds, "installment_count",
			fmt.Sprintf("installment count must be between 1 and %d for cadence %s", c.Cadence.MaxInstallments(), c.Cadence))
	}

	if c.TotalAmount < 1 || c.TotalAmount > MaxComponentAmount {
		fail(domain.RuleTotalOutOfRange, "total_amount",
			fmt.Sprintf("total amount must be between 1 and %d", MaxComponentAmount))
	}

	if len(c.Schedule) == 0 {
		fail(domain.RuleEmptySchedule, "schedule", "at least one installment is required")
		// the remaining rules are meaningless without a schedule
		return violations
	}

	sum := c.ScheduleSum()
	if sum > c.TotalAmount {
		fail(domain.RuleSumExceedsTotal, "schedule",
			fmt.Sprintf("installment amounts add up to %d, more than the declared total %d", sum, c.TotalAmount))
	}
	if int64(len(c.Schedule)) > c.TotalAmount {
		fail(domain.RuleCountExceedsTotal, "schedule",
			fmt.Sprintf("%d installments cannot share a total of %d", len(c.Schedule), c.TotalAmount))
	}
	for _, inst := range c.Schedule {
		if inst.Amount <= 0 {
			fail(domain.RuleZeroAmount, "schedule",
				fmt.Sprintf("installment %d has no amount", inst.SequenceNumber))
		}
	}
	if sum < c.TotalAmount {
		fail(domain.RuleSumBelowTotal, "schedule",
			fmt.Sprintf("installment amounts add up to %d, less than the declared total %d", sum, c.TotalAmount))
	}

	return violations
}
