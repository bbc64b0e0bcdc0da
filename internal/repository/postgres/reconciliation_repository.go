package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/platewise/backoffice/internal/domain"
	"github.com/platewise/backoffice/internal/repository"
)

type reconciliationRow struct {
	domain.SalesReconciliation
	BreakdownRaw []byte `db:"recipe_breakdown"`
}

func (row *reconciliationRow) toReconciliation() (*domain.SalesReconciliation, error) {
	rec := row.SalesReconciliation
	rec.RecipeBreakdown = []domain.BreakdownItem{}
	if len(row.BreakdownRaw) > 0 {
		if err := json.Unmarshal(row.BreakdownRaw, &rec.RecipeBreakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown for reconciliation %d: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

type pgReconciliationRepository struct {
	db *DB
}

func NewReconciliationRepository(db *DB) repository.ReconciliationRepository {
	return &pgReconciliationRepository{db: db}
}

// GetOrCreateActive runs the check-then-create inside one transaction so two
// callers cannot race a second active record into the same (branch, date).
func (r *pgReconciliationRepository) GetOrCreateActive(ctx context.Context, branch string, date time.Time) (*domain.SalesReconciliation, error) {
	var result *domain.SalesReconciliation
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var row reconciliationRow
		query := `
			SELECT * FROM sales_reconciliations
			WHERE branch = $1 AND date = $2 AND status <> $3
			ORDER BY id DESC
			LIMIT 1
			FOR UPDATE
		`
		err := tx.GetContext(ctx, &row, query, branch, date, domain.ReconciliationReconciled)
		if err == nil {
			result, err = row.toReconciliation()
			return err
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to fetch active reconciliation: %w", err)
		}

		insert := `
			INSERT INTO sales_reconciliations (
				branch, date, status, recipe_breakdown,
				total_sales_from_receipt, total_breakdown_sales, total_cogs, variance, gross_margin,
				created_at, updated_at
			) VALUES ($1, $2, $3, '[]'::jsonb, 0, 0, 0, 0, 0, NOW(), NOW())
			RETURNING id, created_at, updated_at
		`
		rec := &domain.SalesReconciliation{
			Branch:          branch,
			Date:            date,
			Status:          domain.ReconciliationPending,
			RecipeBreakdown: []domain.BreakdownItem{},
		}
		if err := tx.QueryRowxContext(ctx, insert, branch, date, rec.Status).
			Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return fmt.Errorf("failed to create reconciliation: %w", err)
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *pgReconciliationRepository) Get(ctx context.Context, id int64) (*domain.SalesReconciliation, error) {
	var row reconciliationRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM sales_reconciliations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reconciliation: %w", err)
	}
	return row.toReconciliation()
}

func (r *pgReconciliationRepository) List(ctx context.Context, branch string) ([]*domain.SalesReconciliation, error) {
	rows := make([]reconciliationRow, 0)
	query := `SELECT * FROM sales_reconciliations WHERE branch = $1 ORDER BY date DESC, id DESC`
	if err := r.db.SelectContext(ctx, &rows, query, branch); err != nil {
		return nil, fmt.Errorf("failed to list reconciliations: %w", err)
	}

	recs := make([]*domain.SalesReconciliation, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toReconciliation()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Save writes every mutable field atomically; totals, status and breakdown
// either update together or not at all.
func (r *pgReconciliationRepository) Save(ctx context.Context, rec *domain.SalesReconciliation) error {
	raw, err := json.Marshal(rec.RecipeBreakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE sales_reconciliations
			SET status = $2, receipt_file_key = $3, total_sales_from_receipt = $4,
				recipe_breakdown = $5, total_breakdown_sales = $6, total_cogs = $7,
				variance = $8, gross_margin = $9, updated_at = NOW()
			WHERE id = $1
		`
		res, err := tx.ExecContext(ctx, query,
			rec.ID, rec.Status, rec.ReceiptFileKey, rec.TotalSalesFromReceipt,
			raw, rec.TotalBreakdownSales, rec.TotalCogs, rec.Variance, rec.GrossMargin)
		if err != nil {
			return fmt.Errorf("failed to save reconciliation: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}
