package handler

import (
	"net/http"

	"github.com/classforge/feeplan-api/internal/domain"
	"github.com/classforge/feeplan-api/internal/service"

	"go.uber.org/zap"
)

// listFeeTypesHandler serves the fee-type catalog the plan form is
// built from. Backed by the service's TTL cache.
func listFeeTypesHandler(svc *service.FeePlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/fee-types")
		defer span.End()

		feeTypes, err := svc.ListFeeTypes(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if feeTypes == nil {
			feeTypes = []domain.FeeType{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"fee_types": feeTypes})
	}
}
