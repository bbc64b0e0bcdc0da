package repository

import (
	"context"

	"github.com/platewise/backoffice/internal/domain"
)

// InsightRepository persists AI insights and their KPIs. Insights for one
// entity kind are bulk-replaced, never partially updated.
type InsightRepository interface {
	// ReplaceForKind truncates all insights of the kind and inserts the new
	// batch in one transaction. KPIs survive only while their insight does.
	ReplaceForKind(ctx context.Context, kind domain.InsightEntityKind, insights []*domain.AiInsight) error

	ListInsights(ctx context.Context) ([]*domain.AiInsight, error)
	GetInsight(ctx context.Context, id int64) (*domain.AiInsight, error)

	// CreateKpi inserts the KPI; a second KPI for the same insight returns
	// domain.ErrKpiExists and leaves the first untouched.
	CreateKpi(ctx context.Context, kpi *domain.Kpi) error
	GetKpiByInsight(ctx context.Context, insightID int64) (*domain.Kpi, error)
	ListKpis(ctx context.Context) ([]*domain.Kpi, error)
}
