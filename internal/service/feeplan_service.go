package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/classforge/feeplan-api/internal/domain"
	"github.com/classforge/feeplan-api/internal/infra/observability"
	"github.com/classforge/feeplan-api/internal/port"
	"github.com/classforge/feeplan-api/internal/schedule"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/feeplan")

const feeTypeCacheKey = "fee_types:active"

// FeePlanService owns the fee-plan lifecycle: previewing schedules for
// the editing form, validating drafts, and persisting finalized plans.
// All schedule math is delegated to the schedule package.
type FeePlanService struct {
	store    port.FeePlanStore
	feeTypes port.FeeTypeStore
	cache    port.Cache[[]domain.FeeType]
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewFeePlanService creates the fee-plan service with all dependencies injected.
func NewFeePlanService(
	store port.FeePlanStore,
	feeTypes port.FeeTypeStore,
	cache port.Cache[[]domain.FeeType],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *FeePlanService {
	return &FeePlanService{
		store:    store,
		feeTypes: feeTypes,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
	}
}

// PreviewSchedule serves the editing form: it either generates a fresh
// schedule for a cadence/count, or — when the request carries an
// existing schedule — keeps its due dates, resets the amounts and
// re-distributes the total. Nothing is persisted.
func (s *FeePlanService) PreviewSchedule(ctx context.Context, req *domain.SchedulePreviewRequest) (*domain.SchedulePreviewResponse, error) {
	ctx, span := tracer.Start(ctx, "FeePlanService.PreviewSchedule")
	defer span.End()
	span.SetAttributes(attribute.String("cadence", string(req.Cadence)))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("schedule_preview", time.Since(start)) }()

	ref := time.Now().UTC()
	if req.ReferenceDate != nil && !req.ReferenceDate.IsZero() {
		ref = req.ReferenceDate.Time
	}

	var installments []domain.Installment
	if len(req.Schedule) > 0 {
		// re-distribution over an existing schedule: prior amounts must
		// have no influence on the new split
		installments = schedule.ResetAmounts(req.Schedule)
	} else {
		count := req.InstallmentCount
		if req.Cadence.Fixed() {
			count = 1
		}
		generated, err := schedule.Generate(req.Cadence, count, ref)
		if err != nil {
			return nil, err
		}
		installments = generated
		s.metrics.IncrScheduleGenerated(req.Cadence)
	}

	if req.TotalAmount > 0 {
		installments = schedule.DistributeEvenly(req.TotalAmount, installments)
	}

	return &domain.SchedulePreviewResponse{
		Cadence:          req.Cadence,
		InstallmentCount: len(installments),
		TotalAmount:      req.TotalAmount,
		Schedule:         installments,
	}, nil
}

// ValidateDraft runs the submission rules without persisting anything.
// Violations are data for the form, not errors: the response is always 200.
func (s *FeePlanService) ValidateDraft(ctx context.Context, components []domain.FeeComponentPlan) *domain.ValidateDraftResponse {
	_, span := tracer.Start(ctx, "FeePlanService.ValidateDraft")
	defer span.End()

	violations := schedule.ValidatePlan(components)
	for _, v := range violations {
		s.metrics.IncrValidationFailure(v.Rule)
	}
	return &domain.ValidateDraftResponse{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}

// CreatePlan validates and persists a new fee plan. Components that
// arrive without a schedule get one generated and evenly distributed
// server-side.
func (s *FeePlanService) CreatePlan(ctx context.Context, req *domain.FeePlanRequest) (*domain.FeePlan, error) {
	ctx, span := tracer.Start(ctx, "FeePlanService.CreatePlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.name", req.Name))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("plan_create", time.Since(start)) }()

	if err := s.checkRequest(req); err != nil {
		return nil, err
	}

	components, err := s.prepareComponents(req.Components, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	// fee-type resolution and duplicate-name lookup hit different
	// tables; run them concurrently
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.checkFeeTypesExist(gCtx, components)
	})
	g.Go(func() error {
		existing, err := s.store.FindFeePlanByName(gCtx, req.AcademicYear, req.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			return &domain.ErrConflict{Message: fmt.Sprintf("a fee plan named %q already exists for %s", req.Name, req.AcademicYear)}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.rejectInvalid(components); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	plan := &domain.FeePlan{
		ID:           uuid.New().String(),
		Name:         req.Name,
		AcademicYear: req.AcademicYear,
		ClassLevel:   req.ClassLevel,
		Components:   components,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.store.CreateFeePlan(ctx, plan)
	if err != nil {
		s.metrics.IncrStoreError("fee_plans")
		return nil, err
	}

	s.metrics.IncrPlan("created")
	s.logger.Info("fee plan created",
		zap.String("plan_id", created.ID),
		zap.String("name", created.Name),
		zap.String("academic_year", created.AcademicYear),
		zap.Int("components", len(created.Components)),
	)
	return created, nil
}

// GetPlan fetches one plan by id.
func (s *FeePlanService) GetPlan(ctx context.Context, planID string) (*domain.FeePlan, error) {
	ctx, span := tracer.Start(ctx, "FeePlanService.GetPlan")
	defer span.End()

	return s.store.GetFeePlan(ctx, planID)
}

// ListPlans returns a page of plans, optionally filtered by academic year.
func (s *FeePlanService) ListPlans(ctx context.Context, academicYear string, page, pageSize int) (*domain.FeePlanListResponse, error) {
	ctx, span := tracer.Start(ctx, "FeePlanService.ListPlans")
	defer span.End()

	plans, err := s.store.ListFeePlans(ctx, academicYear, page, pageSize)
	if err != nil {
		s.metrics.IncrStoreError("fee_plans")
		return nil, err
	}
	return &domain.FeePlanListResponse{
		Plans:    plans,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// UpdatePlan replaces an existing plan after running the same checks as
// CreatePlan. Components whose cadence or installment count changed (or
// that arrive without a schedule) are regenerated and re-distributed;
// components whose total changed with an untouched split get their
// amounts reset so the stale split cannot survive.
func (s *FeePlanService) UpdatePlan(ctx context.Context, planID string, req *domain.FeePlanRequest) (*domain.FeePlan, error) {
	ctx, span := tracer.Start(ctx, "FeePlanService.UpdatePlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", planID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("plan_update", time.Since(start)) }()

	if err := s.checkRequest(req); err != nil {
		return nil, err
	}

	existing, err := s.store.GetFeePlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	components := carryOverComponents(req.Components, existing.Components)
	components, err = s.prepareComponents(components, now)
	if err != nil {
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.checkFeeTypesExist(gCtx, components)
	})
	g.Go(func() error {
		other, err := s.store.FindFeePlanByName(gCtx, req.AcademicYear, req.Name)
		if err != nil {
			return err
		}
		if other != nil && other.ID != planID {
			return &domain.ErrConflict{Message: fmt.Sprintf("a fee plan named %q already exists for %s", req.Name, req.AcademicYear)}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.rejectInvalid(components); err != nil {
		return nil, err
	}

	plan := &domain.FeePlan{
		ID:           planID,
		Name:         req.Name,
		AcademicYear: req.AcademicYear,
		ClassLevel:   req.ClassLevel,
		Components:   components,
		CreatedAt:    existing.CreatedAt,
		UpdatedAt:    now,
	}

	updated, err := s.store.UpdateFeePlan(ctx, plan)
	if err != nil {
		s.metrics.IncrStoreError("fee_plans")
		return nil, err
	}

	s.metrics.IncrPlan("updated")
	s.logger.Info("fee plan updated", zap.String("plan_id", planID))
	return updated, nil
}

// DeletePlan removes a plan.
func (s *FeePlanService) DeletePlan(ctx context.Context, planID string) error {
	ctx, span := tracer.Start(ctx, "FeePlanService.DeletePlan")
	defer span.End()

	if _, err := s.store.GetFeePlan(ctx, planID); err != nil {
		return err
	}
	if err := s.store.DeleteFeePlan(ctx, planID); err != nil {
		s.metrics.IncrStoreError("fee_plans")
		return err
	}
	s.metrics.IncrPlan("deleted")
	s.logger.Info("fee plan deleted", zap.String("plan_id", planID))
	return nil
}

// ListFeeTypes returns the active fee-type catalog, cached.
func (s *FeePlanService) ListFeeTypes(ctx context.Context) ([]domain.FeeType, error) {
	ctx, span := tracer.Start(ctx, "FeePlanService.ListFeeTypes")
	defer span.End()

	if cached, ok := s.cache.Get(feeTypeCacheKey); ok {
		s.metrics.IncrCacheHit("fee_types")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("fee_types")

	feeTypes, err := s.feeTypes.ListFeeTypes(ctx)
	if err != nil {
		s.metrics.IncrStoreError("fee_types")
		return nil, err
	}
	s.cache.Set(feeTypeCacheKey, feeTypes)
	return feeTypes, nil
}

// checkRequest rejects structurally unusable requests before any store
// round-trip.
func (s *FeePlanService) checkRequest(req *domain.FeePlanRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return &domain.ErrValidation{Field: "name", Message: "plan name is required"}
	}
	if strings.TrimSpace(req.AcademicYear) == "" {
		return &domain.ErrValidation{Field: "academic_year", Message: "academic year is required"}
	}
	return nil
}

// prepareComponents fills in schedules for components that arrive
// without one: generate from the cadence, then distribute the total.
func (s *FeePlanService) prepareComponents(components []domain.FeeComponentPlan, ref time.Time) ([]domain.FeeComponentPlan, error) {
	out := make([]domain.FeeComponentPlan, len(components))
	copy(out, components)
	for i := range out {
		c := &out[i]
		if len(c.Schedule) > 0 {
			continue
		}
		count := c.InstallmentCount
		if c.Cadence.Fixed() {
			count = 1
			c.InstallmentCount = 1
		}
		generated, err := schedule.Generate(c.Cadence, count, ref)
		if err != nil {
			return nil, err
		}
		c.Schedule = schedule.DistributeEvenly(c.TotalAmount, generated)
		s.metrics.IncrScheduleGenerated(c.Cadence)
	}
	return out, nil
}

// carryOverComponents applies the editing lifecycle against the stored
// plan: a changed cadence or count drops the submitted schedule (forcing
// regeneration), and a changed total with an untouched split resets the
// amounts to zero.
func carryOverComponents(incoming, stored []domain.FeeComponentPlan) []domain.FeeComponentPlan {
	prev := make(map[string]*domain.FeeComponentPlan, len(stored))
	for i := range stored {
		prev[stored[i].FeeTypeID] = &stored[i]
	}

	out := make([]domain.FeeComponentPlan, len(incoming))
	copy(out, incoming)
	for i := range out {
		c := &out[i]
		old, ok := prev[c.FeeTypeID]
		if !ok || len(c.Schedule) == 0 {
			continue
		}
		if c.Cadence != old.Cadence || c.InstallmentCount != old.InstallmentCount {
			c.Schedule = nil // regenerate from the new cadence/count
			continue
		}
		if c.TotalAmount != old.TotalAmount && sameAmounts(c.Schedule, old.Schedule) {
			c.Schedule = schedule.ResetAmounts(c.Schedule)
			c.Schedule = schedule.DistributeEvenly(c.TotalAmount, c.Schedule)
		}
	}
	return out
}

func sameAmounts(a, b []domain.Installment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Amount != b[i].Amount {
			return false
		}
	}
	return true
}

// checkFeeTypesExist verifies every referenced fee type against the
// catalog.
func (s *FeePlanService) checkFeeTypesExist(ctx context.Context, components []domain.FeeComponentPlan) error {
	ids := make([]string, 0, len(components))
	seen := make(map[string]bool, len(components))
	for _, c := range components {
		if c.FeeTypeID == "" || seen[c.FeeTypeID] {
			continue // empty and duplicate ids are reported by the rule set
		}
		seen[c.FeeTypeID] = true
		ids = append(ids, c.FeeTypeID)
	}
	if len(ids) == 0 {
		return nil
	}

	found, err := s.feeTypes.GetFeeTypes(ctx, ids)
	if err != nil {
		s.metrics.IncrStoreError("fee_types")
		return err
	}
	known := make(map[string]bool, len(found))
	for _, ft := range found {
		known[ft.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return &domain.ErrValidation{Field: "fee_type_id", Message: fmt.Sprintf("unknown fee type %q", id)}
		}
	}
	return nil
}

// rejectInvalid runs the submission rule set and wraps any failures.
func (s *FeePlanService) rejectInvalid(components []domain.FeeComponentPlan) error {
	violations := schedule.ValidatePlan(components)
	if len(violations) == 0 {
		return nil
	}
	for _, v := range violations {
		s.metrics.IncrValidationFailure(v.Rule)
	}
	s.metrics.IncrPlan("rejected")
	return &domain.ErrPlanInvalid{Violations: violations}
}
