// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/classforge/feeplan-api/internal/domain"
)

// FeePlanStore defines all persistence operations for fee plans.
// Implemented by the Supabase adapter (or any other persistence layer).
type FeePlanStore interface {
	CreateFeePlan(ctx context.Context, plan *domain.FeePlan) (*domain.FeePlan, error)
	GetFeePlan(ctx context.Context, planID string) (*domain.FeePlan, error)
	ListFeePlans(ctx context.Context, academicYear string, page, pageSize int) ([]domain.FeePlan, error)
	FindFeePlanByName(ctx context.Context, academicYear, name string) (*domain.FeePlan, error)
	UpdateFeePlan(ctx context.Context, plan *domain.FeePlan) (*domain.FeePlan, error)
	DeleteFeePlan(ctx context.Context, planID string) error
}

// FeeTypeStore resolves the fee-type catalog referenced by plan components.
type FeeTypeStore interface {
	ListFeeTypes(ctx context.Context) ([]domain.FeeType, error)
	GetFeeTypes(ctx context.Context, ids []string) ([]domain.FeeType, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
