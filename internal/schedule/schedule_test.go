package schedule_test

import (
	"errors"
	"testing"
	"time"

	"github.com/classforge/feeplan-api/internal/domain"
	"github.com/classforge/feeplan-api/internal/schedule"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerate_Anchors(t *testing.T) {
	tests := []struct {
		name    string
		cadence domain.InstallmentCadence
		ref     time.Time
		want    time.Time
	}{
		{name: "monthly is one month out", cadence: domain.CadenceMonthly, ref: date(2024, time.May, 15), want: date(2024, time.June, 15)},
		{name: "monthly clamps to month end", cadence: domain.CadenceMonthly, ref: date(2024, time.January, 31), want: date(2024, time.February, 29)},
		{name: "custom follows monthly rule", cadence: domain.CadenceCustom, ref: date(2024, time.May, 15), want: date(2024, time.June, 15)},
		{name: "quarterly mid-quarter", cadence: domain.CadenceQuarterly, ref: date(2024, time.May, 15), want: date(2024, time.July, 1)},
		{name: "quarterly at quarter start", cadence: domain.CadenceQuarterly, ref: date(2024, time.July, 1), want: date(2024, time.October, 1)},
		{name: "quarterly rolls into next year", cadence: domain.CadenceQuarterly, ref: date(2024, time.December, 10), want: date(2025, time.January, 1)},
		{name: "half-yearly first half", cadence: domain.CadenceHalfYearly, ref: date(2024, time.March, 1), want: date(2024, time.July, 1)},
		{name: "half-yearly second half", cadence: domain.CadenceHalfYearly, ref: date(2024, time.August, 20), want: date(2025, time.January, 1)},
		{name: "yearly is next january", cadence: domain.CadenceYearly, ref: date(2024, time.May, 15), want: date(2025, time.January, 1)},
		{name: "one-time is the reference date", cadence: domain.CadenceOneTime, ref: date(2024, time.May, 15), want: date(2024, time.May, 15)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := schedule.Generate(tt.cadence, 1, tt.ref)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("expected 1 installment, got %d", len(got))
			}
			if !got[0].DueDate.Equal(tt.want) {
				t.Errorf("first due date = %s, want %s", got[0].DueDate.Format("2006-01-02"), tt.want.Format("2006-01-02"))
			}
		})
	}
}

func TestGenerate_CountAndSpacing(t *testing.T) {
	tests := []struct {
		name         string
		cadence      domain.InstallmentCadence
		count        int
		spacingMonths int
	}{
		{name: "monthly", cadence: domain.CadenceMonthly, count: 12, spacingMonths: 1},
		{name: "quarterly", cadence: domain.CadenceQuarterly, count: 4, spacingMonths: 3},
		{name: "half-yearly", cadence: domain.CadenceHalfYearly, count: 2, spacingMonths: 6},
		{name: "custom", cadence: domain.CadenceCustom, count: 24, spacingMonths: 1},
	}
	ref := date(2024, time.May, 15)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := schedule.Generate(tt.cadence, tt.count, ref)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if len(got) != tt.count {
				t.Fatalf("expected %d installments, got %d", tt.count, len(got))
			}
			for i, inst := range got {
				if inst.SequenceNumber != i+1 {
					t.Errorf("installment %d has sequence number %d", i, inst.SequenceNumber)
				}
				if inst.Amount != 0 {
					t.Errorf("installment %d generated with amount %d, want 0", i+1, inst.Amount)
				}
				if i == 0 {
					continue
				}
				prev := got[i-1].DueDate.Time
				if !inst.DueDate.After(prev) {
					t.Errorf("due dates not strictly increasing at installment %d", i+1)
				}
				want := prev.AddDate(0, tt.spacingMonths, 0)
				if !inst.DueDate.Equal(want) {
					t.Errorf("installment %d due %s, want %s", i+1,
						inst.DueDate.Format("2006-01-02"), want.Format("2006-01-02"))
				}
			}
		})
	}
}

func TestGenerate_FixedCadencesReturnOneInstallment(t *testing.T) {
	ref := date(2024, time.May, 15)
	for _, cadence := range []domain.InstallmentCadence{domain.CadenceYearly, domain.CadenceOneTime} {
		got, err := schedule.Generate(cadence, 1, ref)
		if err != nil {
			t.Fatalf("Generate(%s) error = %v", cadence, err)
		}
		if len(got) != 1 {
			t.Errorf("Generate(%s) returned %d installments, want 1", cadence, len(got))
		}
	}
}

func TestGenerate_RejectsBadConfigurations(t *testing.T) {
	ref := date(2024, time.May, 15)
	tests := []struct {
		name    string
		cadence domain.InstallmentCadence
		count   int
	}{
		{name: "zero count", cadence: domain.CadenceMonthly, count: 0},
		{name: "negative count", cadence: domain.CadenceMonthly, count: -3},
		{name: "monthly over max", cadence: domain.CadenceMonthly, count: 13},
		{name: "quarterly over max", cadence: domain.CadenceQuarterly, count: 5},
		{name: "custom over max", cadence: domain.CadenceCustom, count: 25},
		{name: "yearly count not 1", cadence: domain.CadenceYearly, count: 2},
		{name: "one-time count not 1", cadence: domain.CadenceOneTime, count: 2},
		{name: "unknown cadence", cadence: "weekly", count: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schedule.Generate(tt.cadence, tt.count, ref)
			var vErr *domain.ErrValidation
			if !errors.As(err, &vErr) {
				t.Errorf("Generate() error = %v, want *domain.ErrValidation", err)
			}
		})
	}
}

func TestDistributeEvenly(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		count int
		want  []int64
	}{
		{name: "remainder goes to first installment", total: 100, count: 3, want: []int64{34, 33, 33}},
		{name: "exact split", total: 4000, count: 4, want: []int64{1000, 1000, 1000, 1000}},
		{name: "single installment takes everything", total: 750, count: 1, want: []int64{750}},
		{name: "total below count piles on first", total: 5, count: 7, want: []int64{5, 0, 0, 0, 0, 0, 0}},
		{name: "remainder of one", total: 10, count: 3, want: []int64{4, 3, 3}},
	}
	ref := date(2024, time.May, 15)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			installments, err := schedule.Generate(domain.CadenceCustom, tt.count, ref)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}

			got := schedule.DistributeEvenly(tt.total, installments)
			if len(got) != tt.count {
				t.Fatalf("expected %d installments, got %d", tt.count, len(got))
			}

			var sum int64
			for i, inst := range got {
				if inst.Amount != tt.want[i] {
					t.Errorf("installment %d amount = %d, want %d", i+1, inst.Amount, tt.want[i])
				}
				sum += inst.Amount
			}
			if sum != tt.total {
				t.Errorf("amounts sum to %d, want %d", sum, tt.total)
			}
		})
	}
}

func TestDistributeEvenly_Guards(t *testing.T) {
	if got := schedule.DistributeEvenly(500, nil); got != nil {
		t.Errorf("empty schedule should be returned unchanged, got %v", got)
	}

	installments, _ := schedule.Generate(domain.CadenceMonthly, 3, date(2024, time.May, 15))
	installments = schedule.DistributeEvenly(90, installments)

	got := schedule.DistributeEvenly(0, installments)
	for i, inst := range got {
		if inst.Amount != installments[i].Amount {
			t.Errorf("zero total must be a no-op, installment %d changed to %d", i+1, inst.Amount)
		}
	}
}

func TestDistributeEvenly_Idempotent(t *testing.T) {
	installments, _ := schedule.Generate(domain.CadenceMonthly, 3, date(2024, time.May, 15))

	first := schedule.DistributeEvenly(100, installments)
	second := schedule.DistributeEvenly(100, first)

	for i := range first {
		if first[i].Amount != second[i].Amount {
			t.Errorf("re-distribution changed installment %d: %d -> %d", i+1, first[i].Amount, second[i].Amount)
		}
	}
}

func TestDistributeEvenly_DoesNotMutateInput(t *testing.T) {
	installments, _ := schedule.Generate(domain.CadenceMonthly, 3, date(2024, time.May, 15))

	_ = schedule.DistributeEvenly(100, installments)
	for i, inst := range installments {
		if inst.Amount != 0 {
			t.Errorf("input installment %d was mutated to %d", i+1, inst.Amount)
		}
	}
}

func TestResetAmounts(t *testing.T) {
	installments, _ := schedule.Generate(domain.CadenceQuarterly, 4, date(2024, time.May, 15))
	distributed := schedule.DistributeEvenly(999, installments)

	reset := schedule.ResetAmounts(distributed)
	for i, inst := range reset {
		if inst.Amount != 0 {
			t.Errorf("installment %d amount = %d after reset, want 0", i+1, inst.Amount)
		}
		if inst.SequenceNumber != distributed[i].SequenceNumber {
			t.Errorf("reset changed sequence number of installment %d", i+1)
		}
		if !inst.DueDate.Equal(distributed[i].DueDate.Time) {
			t.Errorf("reset changed due date of installment %d", i+1)
		}
	}

	// prior amounts must have no residual influence
	again := schedule.DistributeEvenly(100, reset)
	for _, inst := range again {
		if inst.Amount != 25 {
			t.Errorf("installment %d amount = %d, want 25", inst.SequenceNumber, inst.Amount)
		}
	}
}

func TestQuarterlyPlanEndToEnd(t *testing.T) {
	ref := date(2024, time.May, 15)

	installments, err := schedule.Generate(domain.CadenceQuarterly, 4, ref)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	wantDates := []time.Time{
		date(2024, time.July, 1),
		date(2024, time.October, 1),
		date(2025, time.January, 1),
		date(2025, time.April, 1),
	}
	for i, inst := range installments {
		if !inst.DueDate.Equal(wantDates[i]) {
			t.Errorf("installment %d due %s, want %s", i+1,
				inst.DueDate.Format("2006-01-02"), wantDates[i].Format("2006-01-02"))
		}
	}

	installments = schedule.DistributeEvenly(4000, installments)
	for _, inst := range installments {
		if inst.Amount != 1000 {
			t.Errorf("installment %d amount = %d, want 1000", inst.SequenceNumber, inst.Amount)
		}
	}

	component := domain.FeeComponentPlan{
		FeeTypeID:        "tuition",
		Cadence:          domain.CadenceQuarterly,
		InstallmentCount: 4,
		TotalAmount:      4000,
		Schedule:         installments,
	}
	if violations := schedule.ValidatePlan([]domain.FeeComponentPlan{component}); len(violations) != 0 {
		t.Errorf("expected a valid plan, got violations: %+v", violations)
	}
}
