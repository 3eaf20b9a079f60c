package handler

import (
	"encoding/json"
	"net/http"

	"github.com/classforge/feeplan-api/internal/domain"
	"github.com/classforge/feeplan-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Fee plans — preview, validate, CRUD
// ============================================================

func previewScheduleHandler(svc *service.FeePlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/fee-plans/preview")
		defer span.End()

		var req domain.SchedulePreviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("cadence", string(req.Cadence)))

		resp, err := svc.PreviewSchedule(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func validateDraftHandler(svc *service.FeePlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/fee-plans/validate")
		defer span.End()

		var req domain.ValidateDraftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		// Violations are data here, not an error: the form polls this
		// endpoint while the draft is being edited.
		writeJSON(w, http.StatusOK, svc.ValidateDraft(ctx, req.Components))
	}
}

func createFeePlanHandler(svc *service.FeePlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/fee-plans")
		defer span.End()

		var req domain.FeePlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("plan.name", req.Name))

		plan, err := svc.CreatePlan(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, plan)
	}
}

func getFeePlanHandler(svc *service.FeePlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/fee-plans/{planId}")
		defer span.End()

		planID := chi.URLParam(r, "planId")
		plan, err := svc.GetPlan(ctx, planID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	}
}

func listFeePlansHandler(svc *service.FeePlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/fee-plans")
		defer span.End()

		page, pageSize := parsePagination(r)
		academicYear := r.URL.Query().Get("academic_year")

		resp, err := svc.ListPlans(ctx, academicYear, page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func updateFeePlanHandler(svc *service.FeePlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/fee-plans/{planId}")
		defer span.End()

		planID := chi.URLParam(r, "planId")
		span.SetAttributes(attribute.String("plan.id", planID))

		var req domain.FeePlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		plan, err := svc.UpdatePlan(ctx, planID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	}
}

func deleteFeePlanHandler(svc *service.FeePlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/fee-plans/{planId}")
		defer span.End()

		planID := chi.URLParam(r, "planId")
		if err := svc.DeletePlan(ctx, planID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
