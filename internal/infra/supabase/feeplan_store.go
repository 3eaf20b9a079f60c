package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/classforge/feeplan-api/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Fee plan store — create, get, list, find-by-name, update, delete
// ============================================================

// feePlanRow maps the fee_plans table. Components live in a jsonb column:
// a plan and its components are created and replaced wholesale, never
// patched individually, so one row keeps the write atomic.
type feePlanRow struct {
	ID           string                    `json:"id,omitempty"`
	Name         string                    `json:"name"`
	AcademicYear string                    `json:"academic_year"`
	ClassLevel   string                    `json:"class_level,omitempty"`
	Components   []domain.FeeComponentPlan `json:"components"`
	CreatedAt    time.Time                 `json:"created_at,omitempty"`
	UpdatedAt    time.Time                 `json:"updated_at,omitempty"`
}

func (r *feePlanRow) toDomain() domain.FeePlan {
	return domain.FeePlan{
		ID:           r.ID,
		Name:         r.Name,
		AcademicYear: r.AcademicYear,
		ClassLevel:   r.ClassLevel,
		Components:   r.Components,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// CreateFeePlan inserts a plan with its full component set.
func (c *Client) CreateFeePlan(ctx context.Context, plan *domain.FeePlan) (*domain.FeePlan, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateFeePlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.name", plan.Name))

	row := feePlanRow{
		ID:           plan.ID,
		Name:         plan.Name,
		AcademicYear: plan.AcademicYear,
		ClassLevel:   plan.ClassLevel,
		Components:   plan.Components,
		CreatedAt:    plan.CreatedAt,
		UpdatedAt:    plan.UpdatedAt,
	}

	var created *domain.FeePlan
	err := c.execute(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodPost, "fee_plans", row)
		if err != nil {
			return err
		}

		var rows []feePlanRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode fee_plans insert: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("no result from fee_plans insert")
		}
		p := rows[0].toDomain()
		created = &p
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/fee_plans", Err: err}
	}
	return created, nil
}

// GetFeePlan fetches one plan by id.
func (c *Client) GetFeePlan(ctx context.Context, planID string) (*domain.FeePlan, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetFeePlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", planID))

	var plan *domain.FeePlan
	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("fee_plans?id=eq.%s&limit=1", url.QueryEscape(planID))
		body, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			return &domain.ErrNotFound{Resource: "fee plan", ID: planID}
		}

		var rows []feePlanRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode fee_plans: %w", err)
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "fee plan", ID: planID}
		}
		p := rows[0].toDomain()
		plan = &p
		return nil
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/fee_plans", Err: err}
	}
	return plan, nil
}

// ListFeePlans returns a page of plans, optionally filtered by academic year.
func (c *Client) ListFeePlans(ctx context.Context, academicYear string, page, pageSize int) ([]domain.FeePlan, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListFeePlans")
	defer span.End()

	var plans []domain.FeePlan
	err := c.execute(ctx, func() error {
		offset := (page - 1) * pageSize
		path := fmt.Sprintf("fee_plans?order=created_at.desc&limit=%d&offset=%d", pageSize, offset)
		if academicYear != "" {
			path = fmt.Sprintf("fee_plans?academic_year=eq.%s&order=created_at.desc&limit=%d&offset=%d",
				url.QueryEscape(academicYear), pageSize, offset)
		}

		body, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			plans = []domain.FeePlan{}
			return nil
		}

		var rows []feePlanRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode fee_plans: %w", err)
		}
		plans = make([]domain.FeePlan, 0, len(rows))
		for i := range rows {
			plans = append(plans, rows[i].toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/fee_plans", Err: err}
	}
	return plans, nil
}

// FindFeePlanByName looks a plan up by (academic year, name). Returns
// nil without error when no such plan exists.
func (c *Client) FindFeePlanByName(ctx context.Context, academicYear, name string) (*domain.FeePlan, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindFeePlanByName")
	defer span.End()

	var plan *domain.FeePlan
	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("fee_plans?academic_year=eq.%s&name=eq.%s&limit=1",
			url.QueryEscape(academicYear), url.QueryEscape(name))
		body, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			return nil
		}

		var rows []feePlanRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode fee_plans: %w", err)
		}
		if len(rows) > 0 {
			p := rows[0].toDomain()
			plan = &p
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/fee_plans", Err: err}
	}
	return plan, nil
}

// UpdateFeePlan replaces a plan row wholesale.
func (c *Client) UpdateFeePlan(ctx context.Context, plan *domain.FeePlan) (*domain.FeePlan, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateFeePlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", plan.ID))

	row := map[string]any{
		"name":          plan.Name,
		"academic_year": plan.AcademicYear,
		"class_level":   plan.ClassLevel,
		"components":    plan.Components,
		"updated_at":    plan.UpdatedAt,
	}

	var updated *domain.FeePlan
	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("fee_plans?id=eq.%s", url.QueryEscape(plan.ID))
		body, err := c.doRequest(ctx, http.MethodPatch, path, row)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			return &domain.ErrNotFound{Resource: "fee plan", ID: plan.ID}
		}

		var rows []feePlanRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode fee_plans update: %w", err)
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "fee plan", ID: plan.ID}
		}
		p := rows[0].toDomain()
		updated = &p
		return nil
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/fee_plans", Err: err}
	}
	return updated, nil
}

// DeleteFeePlan removes a plan and its components.
func (c *Client) DeleteFeePlan(ctx context.Context, planID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteFeePlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", planID))

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("fee_plans?id=eq.%s", url.QueryEscape(planID))
		_, err := c.doRequest(ctx, http.MethodDelete, path, nil)
		return err
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/fee_plans", Err: err}
	}
	return nil
}
