package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/classforge/feeplan-api/internal/domain"
)

// ============================================================
// Fee type catalog — read-only from this service
// ============================================================

// feeTypeRow maps the fee_types table.
type feeTypeRow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

// ListFeeTypes returns every active fee type.
func (c *Client) ListFeeTypes(ctx context.Context) ([]domain.FeeType, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListFeeTypes")
	defer span.End()

	var feeTypes []domain.FeeType
	err := c.execute(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, "fee_types?active=eq.true&order=name.asc", nil)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			feeTypes = []domain.FeeType{}
			return nil
		}

		var rows []feeTypeRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode fee_types: %w", err)
		}
		feeTypes = make([]domain.FeeType, 0, len(rows))
		for _, r := range rows {
			feeTypes = append(feeTypes, domain.FeeType{
				ID:          r.ID,
				Name:        r.Name,
				Description: r.Description,
				Active:      r.Active,
			})
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/fee_types", Err: err}
	}
	return feeTypes, nil
}

// GetFeeTypes fetches the given fee types by id. Missing ids are simply
// absent from the result; the caller decides whether that is an error.
func (c *Client) GetFeeTypes(ctx context.Context, ids []string) ([]domain.FeeType, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetFeeTypes")
	defer span.End()

	if len(ids) == 0 {
		return []domain.FeeType{}, nil
	}

	var feeTypes []domain.FeeType
	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("fee_types?id=in.(%s)", url.QueryEscape(strings.Join(ids, ",")))
		body, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			feeTypes = []domain.FeeType{}
			return nil
		}

		var rows []feeTypeRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode fee_types: %w", err)
		}
		feeTypes = make([]domain.FeeType, 0, len(rows))
		for _, r := range rows {
			feeTypes = append(feeTypes, domain.FeeType{
				ID:          r.ID,
				Name:        r.Name,
				Description: r.Description,
				Active:      r.Active,
			})
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/fee_types", Err: err}
	}
	return feeTypes, nil
}
