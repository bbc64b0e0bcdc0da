package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/platewise/backoffice/internal/domain"
	"github.com/platewise/backoffice/internal/repository"
)

type invoiceRow struct {
	domain.Invoice
	ExtractedRaw []byte `db:"extracted_data"`
}

func (row *invoiceRow) toInvoice() (*domain.Invoice, error) {
	inv := row.Invoice
	status, ok := domain.ParseInvoiceStatus(string(inv.Status))
	if !ok {
		return nil, fmt.Errorf("invoice %d has unknown status %q", inv.ID, inv.Status)
	}
	inv.Status = status
	if len(row.ExtractedRaw) > 0 {
		var payload domain.ExtractionPayload
		if err := json.Unmarshal(row.ExtractedRaw, &payload); err != nil {
			return nil, fmt.Errorf("decode extracted data for invoice %d: %w", inv.ID, err)
		}
		inv.ExtractedData = &payload
	}
	return &inv, nil
}

const invoiceColumns = `
	inv.id, inv.supplier_id, s.name AS supplier_name, inv.invoice_number,
	inv.invoice_date, inv.due_date, inv.file_key, inv.file_mime, inv.total,
	inv.status, inv.extracted_data, inv.created_at, inv.updated_at
`

type pgInvoiceRepository struct {
	db *DB
}

func NewInvoiceRepository(db *DB) repository.InvoiceRepository {
	return &pgInvoiceRepository{db: db}
}

func (r *pgInvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	query := `
		INSERT INTO invoices (supplier_id, invoice_number, file_key, file_mime, total, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		inv.SupplierID, inv.InvoiceNumber, inv.FileKey, inv.FileMime, inv.Total, inv.Status).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

func (r *pgInvoiceRepository) Get(ctx context.Context, id int64) (*domain.Invoice, error) {
	var row invoiceRow
	query := fmt.Sprintf(`
		SELECT %s FROM invoices inv
		JOIN suppliers s ON s.id = inv.supplier_id
		WHERE inv.id = $1
	`, invoiceColumns)
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoice: %w", err)
	}
	return row.toInvoice()
}

func (r *pgInvoiceRepository) List(ctx context.Context) ([]*domain.Invoice, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM invoices inv
		JOIN suppliers s ON s.id = inv.supplier_id
		ORDER BY inv.created_at DESC
	`, invoiceColumns)
	return r.selectInvoices(ctx, query)
}

func (r *pgInvoiceRepository) ListBySupplier(ctx context.Context, supplierID int64) ([]*domain.Invoice, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM invoices inv
		JOIN suppliers s ON s.id = inv.supplier_id
		WHERE inv.supplier_id = $1
		ORDER BY inv.created_at DESC
	`, invoiceColumns)
	return r.selectInvoices(ctx, query, supplierID)
}

func (r *pgInvoiceRepository) selectInvoices(ctx context.Context, query string, args ...any) ([]*domain.Invoice, error) {
	rows := make([]invoiceRow, 0)
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	invoices := make([]*domain.Invoice, 0, len(rows))
	for i := range rows {
		inv, err := rows[i].toInvoice()
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

// ClaimProcessing is the only concurrency guard on invoices: the status read
// and the move to processing happen under a row lock, so two concurrent
// process requests can never both trigger an AI call for one document.
func (r *pgInvoiceRepository) ClaimProcessing(ctx context.Context, id int64) (*domain.Invoice, error) {
	var claimed *domain.Invoice
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var row invoiceRow
		query := fmt.Sprintf(`
			SELECT %s FROM invoices inv
			JOIN suppliers s ON s.id = inv.supplier_id
			WHERE inv.id = $1
			FOR UPDATE OF inv
		`, invoiceColumns)
		err := tx.GetContext(ctx, &row, query, id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to fetch invoice for claim: %w", err)
		}

		if row.Status == domain.InvoiceProcessing {
			return domain.ErrAlreadyProcessing
		}
		if !row.Status.CanStartProcessing() {
			return domain.ErrInvalidTransition
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`,
			id, domain.InvoiceProcessing); err != nil {
			return fmt.Errorf("failed to claim invoice: %w", err)
		}

		row.Status = domain.InvoiceProcessing
		claimed, err = row.toInvoice()
		return err
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *pgInvoiceRepository) SetStatus(ctx context.Context, id int64, status domain.InvoiceStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to set invoice status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgInvoiceRepository) SaveExtractionResult(ctx context.Context, id int64, status domain.InvoiceStatus, invoiceNumber string, invoiceDate, dueDate *time.Time, total decimal.Decimal, payload *domain.ExtractionPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode extracted data: %w", err)
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE invoices
			SET status = $2, invoice_number = $3, invoice_date = $4, due_date = $5,
			    total = $6, extracted_data = $7, updated_at = NOW()
			WHERE id = $1
		`
		res, err := tx.ExecContext(ctx, query, id, status, invoiceNumber, invoiceDate, dueDate, total, raw)
		if err != nil {
			return fmt.Errorf("failed to save extraction result: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *pgInvoiceRepository) SaveValidation(ctx context.Context, id int64, status domain.InvoiceStatus, total decimal.Decimal, payload *domain.ExtractionPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode extracted data: %w", err)
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE invoices
			SET status = $2, total = $3, extracted_data = $4, updated_at = NOW()
			WHERE id = $1
		`
		res, err := tx.ExecContext(ctx, query, id, status, total, raw)
		if err != nil {
			return fmt.Errorf("failed to save validation: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}
