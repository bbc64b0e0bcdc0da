package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/platewise/backoffice/internal/domain"
	"github.com/platewise/backoffice/internal/repository"
)

type insightRow struct {
	domain.AiInsight
	DataRaw []byte `db:"data"`
}

func (row *insightRow) toInsight() (*domain.AiInsight, error) {
	insight := row.AiInsight
	if len(row.DataRaw) > 0 {
		if err := json.Unmarshal(row.DataRaw, &insight.Data); err != nil {
			return nil, fmt.Errorf("decode insight %d data: %w", insight.ID, err)
		}
	}
	return &insight, nil
}

type kpiRow struct {
	domain.Kpi
	MilestonesRaw []byte `db:"milestones"`
}

func (row *kpiRow) toKpi() (*domain.Kpi, error) {
	kpi := row.Kpi
	kpi.Milestones = []domain.KpiMilestone{}
	if len(row.MilestonesRaw) > 0 {
		if err := json.Unmarshal(row.MilestonesRaw, &kpi.Milestones); err != nil {
			return nil, fmt.Errorf("decode KPI %d milestones: %w", kpi.ID, err)
		}
	}
	return &kpi, nil
}

type pgInsightRepository struct {
	db *DB
}

func NewInsightRepository(db *DB) repository.InsightRepository {
	return &pgInsightRepository{db: db}
}

// ReplaceForKind truncates the kind's insights and inserts the new batch in
// one transaction; a failed regeneration leaves the old insights in place.
func (r *pgInsightRepository) ReplaceForKind(ctx context.Context, kind domain.InsightEntityKind, insights []*domain.AiInsight) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ai_insights WHERE entity_kind = $1`, kind); err != nil {
			return fmt.Errorf("failed to truncate %s insights: %w", kind, err)
		}

		for _, insight := range insights {
			raw, err := json.Marshal(insight.Data)
			if err != nil {
				return fmt.Errorf("encode insight data: %w", err)
			}
			err = tx.QueryRowxContext(ctx, `
				INSERT INTO ai_insights (entity_kind, entity_id, data, created_at)
				VALUES ($1, $2, $3, NOW())
				RETURNING id, created_at
			`, insight.EntityKind, insight.EntityID, raw).Scan(&insight.ID, &insight.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert insight: %w", err)
			}
		}
		return nil
	})
}

func (r *pgInsightRepository) ListInsights(ctx context.Context) ([]*domain.AiInsight, error) {
	rows := make([]insightRow, 0)
	query := `SELECT * FROM ai_insights ORDER BY entity_kind, entity_id`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}

	insights := make([]*domain.AiInsight, 0, len(rows))
	for i := range rows {
		insight, err := rows[i].toInsight()
		if err != nil {
			return nil, err
		}
		insights = append(insights, insight)
	}
	return insights, nil
}

func (r *pgInsightRepository) GetInsight(ctx context.Context, id int64) (*domain.AiInsight, error) {
	var row insightRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM ai_insights WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch insight: %w", err)
	}
	return row.toInsight()
}

// CreateKpi enforces the one-KPI-per-insight rule under a transaction; the
// kpis table additionally carries a unique index on ai_insight_id.
func (r *pgInsightRepository) CreateKpi(ctx context.Context, kpi *domain.Kpi) error {
	raw, err := json.Marshal(kpi.Milestones)
	if err != nil {
		return fmt.Errorf("encode KPI milestones: %w", err)
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var exists bool
		err := tx.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM kpis WHERE ai_insight_id = $1)`, kpi.AiInsightID)
		if err != nil {
			return fmt.Errorf("failed to check existing KPI: %w", err)
		}
		if exists {
			return domain.ErrKpiExists
		}

		query := `
			INSERT INTO kpis (ai_insight_id, title, baseline_value, target_value,
				start_date, end_date, milestones, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
			RETURNING id, created_at, updated_at
		`
		err = tx.QueryRowxContext(ctx, query,
			kpi.AiInsightID, kpi.Title, kpi.BaselineValue, kpi.TargetValue,
			kpi.StartDate, kpi.EndDate, raw, kpi.Status).
			Scan(&kpi.ID, &kpi.CreatedAt, &kpi.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert KPI: %w", err)
		}
		return nil
	})
}

func (r *pgInsightRepository) GetKpiByInsight(ctx context.Context, insightID int64) (*domain.Kpi, error) {
	var row kpiRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM kpis WHERE ai_insight_id = $1`, insightID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch KPI: %w", err)
	}
	return row.toKpi()
}

func (r *pgInsightRepository) ListKpis(ctx context.Context) ([]*domain.Kpi, error) {
	rows := make([]kpiRow, 0)
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM kpis ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("failed to list KPIs: %w", err)
	}

	kpis := make([]*domain.Kpi, 0, len(rows))
	for i := range rows {
		kpi, err := rows[i].toKpi()
		if err != nil {
			return nil, err
		}
		kpis = append(kpis, kpi)
	}
	return kpis, nil
}
