package domain

import (
	"fmt"
	"time"
)

// ============================================================
// Installment cadences
// ============================================================

// InstallmentCadence is the repeating period pattern that governs how many
// installments a fee component has and how far apart they fall.
type InstallmentCadence string

const (
	CadenceMonthly    InstallmentCadence = "monthly"
	CadenceQuarterly  InstallmentCadence = "quarterly"
	CadenceHalfYearly InstallmentCadence = "half_yearly"
	CadenceYearly     InstallmentCadence = "yearly"
	CadenceOneTime    InstallmentCadence = "one_time"
	CadenceCustom     InstallmentCadence = "custom"
)

// AllCadences lists every supported cadence, in the order the fee-plan
// form presents them.
var AllCadences = []InstallmentCadence{
	CadenceMonthly,
	CadenceQuarterly,
	CadenceHalfYearly,
	CadenceYearly,
	CadenceOneTime,
	CadenceCustom,
}

// MaxInstallments returns the upper bound on the installment count for
// the cadence. Unknown cadences return 0.
func (c InstallmentCadence) MaxInstallments() int {
	switch c {
	case CadenceMonthly:
		return 12
	case CadenceQuarterly:
		return 4
	case CadenceHalfYearly:
		return 2
	case CadenceYearly, CadenceOneTime:
		return 1
	case CadenceCustom:
		return 24
	}
	return 0
}

// Fixed reports whether the cadence's installment count is locked at 1
// and not editable by the caller.
func (c InstallmentCadence) Fixed() bool {
	return c == CadenceYearly || c == CadenceOneTime
}

// Valid reports whether the cadence is one of the supported values.
func (c InstallmentCadence) Valid() bool {
	return c.MaxInstallments() > 0
}

// ============================================================
// Schedules
// ============================================================

// dateLayout is the wire format for installment due dates. Due dates are
// calendar dates with no time component.
const dateLayout = "2006-01-02"

// Date is a calendar date (UTC midnight) serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// DateOf truncates t to a calendar date in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s", s)
	}
	t, err := time.ParseInLocation(dateLayout, s[1:len(s)-1], time.UTC)
	if err != nil {
		return fmt.Errorf("invalid date %s: expected YYYY-MM-DD", s)
	}
	d.Time = t
	return nil
}

// Installment is one scheduled (date, amount) obligation within a fee
// component's schedule. Amounts are whole rupees; there is no fractional
// currency anywhere in the system.
type Installment struct {
	SequenceNumber int   `json:"sequence_number"`
	DueDate        Date  `json:"due_date"`
	Amount         int64 `json:"amount"`
}

// FeeComponentPlan is one fee type's contribution to a fee plan: its own
// cadence, total amount and installment schedule. Sequence numbers within
// Schedule are dense and 1-based.
type FeeComponentPlan struct {
	FeeTypeID        string             `json:"fee_type_id"`
	Cadence          InstallmentCadence `json:"cadence"`
	InstallmentCount int                `json:"installment_count"`
	TotalAmount      int64              `json:"total_amount"`
	Schedule         []Installment      `json:"schedule"`
}

// ScheduleSum returns the sum of all installment amounts.
func (c *FeeComponentPlan) ScheduleSum() int64 {
	var sum int64
	for _, inst := range c.Schedule {
		sum += inst.Amount
	}
	return sum
}

// FeePlan groups the fee components billed together for a class in an
// academic year.
type FeePlan struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	AcademicYear string             `json:"academic_year"`
	ClassLevel   string             `json:"class_level,omitempty"`
	Components   []FeeComponentPlan `json:"components"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// ============================================================
// Validation rules
// ============================================================

// Rule names identify which submission check a violation came from, so
// the form can highlight the exact offending component and field.
const (
	RuleNoComponents     = "no_components"
	RuleFeeTypeRequired  = "fee_type_required"
	RuleUnknownCadence   = "unknown_cadence"
	RuleCadenceBounds    = "cadence_bounds"
	RuleTotalOutOfRange  = "total_out_of_range"
	RuleEmptySchedule    = "empty_schedule"
	RuleDuplicateFeeType = "duplicate_fee_type"
	RuleSumExceedsTotal  = "sum_exceeds_total"
	RuleCountExceedsTotal = "count_exceeds_total"
	RuleZeroAmount       = "zero_amount"
	RuleSumBelowTotal    = "sum_below_total"
)

// Violation is one failed submission rule, attributable to a component
// (by fee type) and a field.
type Violation struct {
	FeeTypeID string `json:"fee_type_id,omitempty"`
	Rule      string `json:"rule"`
	Field     string `json:"field"`
	Message   string `json:"message"`
}

// ============================================================
// API request/response types
// ============================================================

// SchedulePreviewRequest asks for a generated (and optionally
// distributed) schedule without persisting anything. ReferenceDate
// defaults to today. When Schedule is set, the existing due dates are
// kept and only the amounts are redistributed over the new total.
type SchedulePreviewRequest struct {
	Cadence          InstallmentCadence `json:"cadence"`
	InstallmentCount int                `json:"installment_count"`
	TotalAmount      int64              `json:"total_amount,omitempty"`
	ReferenceDate    *Date              `json:"reference_date,omitempty"`
	Schedule         []Installment      `json:"schedule,omitempty"`
}

// SchedulePreviewResponse carries the generated schedule back to the form.
type SchedulePreviewResponse struct {
	Cadence          InstallmentCadence `json:"cadence"`
	InstallmentCount int                `json:"installment_count"`
	TotalAmount      int64              `json:"total_amount"`
	Schedule         []Installment      `json:"schedule"`
}

// FeePlanRequest is the payload for creating or replacing a fee plan.
type FeePlanRequest struct {
	Name         string             `json:"name"`
	AcademicYear string             `json:"academic_year"`
	ClassLevel   string             `json:"class_level,omitempty"`
	Components   []FeeComponentPlan `json:"components"`
}

// ValidateDraftRequest is the payload for the dry-run validation endpoint.
type ValidateDraftRequest struct {
	Components []FeeComponentPlan `json:"components"`
}

// ValidateDraftResponse lists every failed rule; an empty list means the
// draft is ready for submission.
type ValidateDraftResponse struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
}

// FeePlanListResponse is a paginated page of fee plans.
type FeePlanListResponse struct {
	Plans    []FeePlan `json:"plans"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// FeeMetrics is the counter snapshot served by GET /v1/metrics/fees.
type FeeMetrics struct {
	PlansCreated       int64   `json:"plans_created"`
	PlansRejected      int64   `json:"plans_rejected"`
	SchedulesGenerated int64   `json:"schedules_generated"`
	ValidationFailures int64   `json:"validation_failures"`
	RejectionRate      float64 `json:"rejection_rate"`
	CacheHitRate       float64 `json:"cache_hit_rate"`
	Period             string  `json:"period"`
}
