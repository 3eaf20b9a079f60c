package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/classforge/feeplan-api/internal/config"
	"github.com/classforge/feeplan-api/internal/domain"
	"github.com/classforge/feeplan-api/internal/handler"
	"github.com/classforge/feeplan-api/internal/infra/cache"
	"github.com/classforge/feeplan-api/internal/infra/observability"
	"github.com/classforge/feeplan-api/internal/infra/resilience"
	"github.com/classforge/feeplan-api/internal/infra/supabase"
	"github.com/classforge/feeplan-api/internal/service"

	"go.uber.org/zap"
)

// fakePostgREST emulates the slice of the Supabase PostgREST API the
// service talks to: the fee_types catalog and the fee_plans table.
type fakePostgREST struct {
	mu    sync.Mutex
	plans map[string]map[string]any
}

func newFakePostgREST() *fakePostgREST {
	return &fakePostgREST{plans: make(map[string]map[string]any)}
}

func eqParam(r *http.Request, name string) string {
	return strings.TrimPrefix(r.URL.Query().Get(name), "eq.")
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasPrefix(r.URL.Path, "/rest/v1/fee_types"):
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "tuition", "name": "Tuition", "description": "Tuition fee", "active": true},
			{"id": "transport", "name": "Transport", "description": "Bus fee", "active": true},
		})

	case strings.HasPrefix(r.URL.Path, "/rest/v1/fee_plans"):
		switch r.Method {
		case http.MethodPost:
			var row map[string]any
			json.NewDecoder(r.Body).Decode(&row)
			f.plans[row["id"].(string)] = row
			json.NewEncoder(w).Encode([]map[string]any{row})

		case http.MethodGet:
			if id := eqParam(r, "id"); id != "" {
				if row, ok := f.plans[id]; ok {
					json.NewEncoder(w).Encode([]map[string]any{row})
				} else {
					w.Write([]byte("[]"))
				}
				return
			}
			name := eqParam(r, "name")
			year := eqParam(r, "academic_year")
			out := make([]map[string]any, 0)
			for _, row := range f.plans {
				if name != "" && row["name"] != name {
					continue
				}
				if year != "" && row["academic_year"] != year {
					continue
				}
				out = append(out, row)
			}
			json.NewEncoder(w).Encode(out)

		case http.MethodPatch:
			id := eqParam(r, "id")
			row, ok := f.plans[id]
			if !ok {
				w.Write([]byte("[]"))
				return
			}
			var patch map[string]any
			json.NewDecoder(r.Body).Decode(&patch)
			for k, v := range patch {
				row[k] = v
			}
			json.NewEncoder(w).Encode([]map[string]any{row})

		case http.MethodDelete:
			delete(f.plans, eqParam(r, "id"))
			w.WriteHeader(http.StatusNoContent)
		}

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newIntegrationRouter(t *testing.T) (http.Handler, func()) {
	t.Helper()
	backend := httptest.NewServer(newFakePostgREST())

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	resilienceCfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 10}
	cb := resilience.NewCircuitBreaker("test")
	httpClient := &http.Client{Timeout: 5 * time.Second}

	store := supabase.NewClient(httpClient, backend.URL, "anon", "service", cb, resilienceCfg, logger)
	svc := service.NewFeePlanService(store, store, cache.New[[]domain.FeeType](time.Minute), metrics, logger)
	cfg := &config.Config{AuthEnabled: false}

	return handler.NewRouter(svc, metrics, cfg, logger), backend.Close
}

// TestIntegration_PlanLifecycle drives a fee plan through the full HTTP
// stack against an emulated PostgREST backend: preview, create, fetch,
// update, delete.
func TestIntegration_PlanLifecycle(t *testing.T) {
	router, cleanup := newIntegrationRouter(t)
	defer cleanup()

	do := func(method, path string, payload any) *httptest.ResponseRecorder {
		var body bytes.Buffer
		if payload != nil {
			json.NewEncoder(&body).Encode(payload)
		}
		req := httptest.NewRequest(method, path, &body)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	// Preview a quarterly schedule for the form.
	rec := do(http.MethodPost, "/v1/fee-plans/preview", map[string]any{
		"cadence":           "quarterly",
		"installment_count": 4,
		"total_amount":      48000,
		"reference_date":    "2024-05-15",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("preview: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var preview domain.SchedulePreviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if len(preview.Schedule) != 4 || preview.Schedule[0].Amount != 12000 {
		t.Fatalf("unexpected preview schedule: %+v", preview.Schedule)
	}

	// Create the plan with the previewed component.
	rec = do(http.MethodPost, "/v1/fee-plans", map[string]any{
		"name":          "Grade 5 Standard",
		"academic_year": "2024-25",
		"class_level":   "5",
		"components": []map[string]any{
			{
				"fee_type_id":       "tuition",
				"cadence":           "quarterly",
				"installment_count": 4,
				"total_amount":      48000,
				"schedule":          preview.Schedule,
			},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var plan domain.FeePlan
	if err := json.Unmarshal(rec.Body.Bytes(), &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if plan.ID == "" {
		t.Fatal("expected generated plan id")
	}

	// Fetch it back.
	rec = do(http.MethodGet, "/v1/fee-plans/"+plan.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var fetched domain.FeePlan
	if err := json.Unmarshal(rec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode fetched plan: %v", err)
	}
	if fetched.Components[0].ScheduleSum() != 48000 {
		t.Errorf("expected persisted schedule sum 48000, got %d", fetched.Components[0].ScheduleSum())
	}

	// Update with a different total; the untouched split is redistributed.
	rec = do(http.MethodPut, "/v1/fee-plans/"+plan.ID, map[string]any{
		"name":          "Grade 5 Standard",
		"academic_year": "2024-25",
		"class_level":   "5",
		"components": []map[string]any{
			{
				"fee_type_id":       "tuition",
				"cadence":           "quarterly",
				"installment_count": 4,
				"total_amount":      40000,
				"schedule":          preview.Schedule,
			},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated domain.FeePlan
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated plan: %v", err)
	}
	for i, inst := range updated.Components[0].Schedule {
		if inst.Amount != 10000 {
			t.Errorf("installment %d: expected redistributed 10000, got %d", i+1, inst.Amount)
		}
	}

	// Delete and confirm it is gone.
	rec = do(http.MethodDelete, "/v1/fee-plans/"+plan.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	rec = do(http.MethodGet, "/v1/fee-plans/"+plan.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected 404, got %d", rec.Code)
	}
}

// TestIntegration_InvalidPlanRejected checks that the validation layer
// rejects a bad submission before it ever reaches the backend.
func TestIntegration_InvalidPlanRejected(t *testing.T) {
	router, cleanup := newIntegrationRouter(t)
	defer cleanup()

	payload := map[string]any{
		"name":          "Broken Plan",
		"academic_year": "2024-25",
		"components": []map[string]any{
			{
				"fee_type_id":       "tuition",
				"cadence":           "monthly",
				"installment_count": 2,
				"total_amount":      100,
				"schedule": []map[string]any{
					{"sequence_number": 1, "due_date": "2024-07-01", "amount": 90},
					{"sequence_number": 2, "due_date": "2024-08-01", "amount": 90},
				},
			},
		},
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/v1/fee-plans", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Violations []domain.Violation `json:"violations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	found := false
	for _, v := range resp.Violations {
		if v.Rule == domain.RuleSumExceedsTotal {
			found = true
		}
	}
	if !found {
		t.Errorf("expected sum_exceeds_total violation, got %+v", resp.Violations)
	}
}
