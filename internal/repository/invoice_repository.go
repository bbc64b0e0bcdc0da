package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/platewise/backoffice/internal/domain"
)

// InvoiceRepository persists digitized invoices. Multi-field financial
// updates (status, totals, extracted data) happen in one transaction so
// partial writes are never observed.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	Get(ctx context.Context, id int64) (*domain.Invoice, error)
	ListBySupplier(ctx context.Context, supplierID int64) ([]*domain.Invoice, error)
	List(ctx context.Context) ([]*domain.Invoice, error)

	// ClaimProcessing atomically moves the invoice into processing and
	// returns the claimed record. Returns domain.ErrAlreadyProcessing when
	// another request holds the document.
	ClaimProcessing(ctx context.Context, id int64) (*domain.Invoice, error)

	// SaveExtractionResult writes status, document-read invoice number,
	// dates, total and the full extracted payload atomically.
	SaveExtractionResult(ctx context.Context, id int64, status domain.InvoiceStatus, invoiceNumber string, invoiceDate, dueDate *time.Time, total decimal.Decimal, payload *domain.ExtractionPayload) error

	// SaveValidation rewrites the extracted payload and status after a
	// manual line-item edit, leaving identifying fields alone.
	SaveValidation(ctx context.Context, id int64, status domain.InvoiceStatus, total decimal.Decimal, payload *domain.ExtractionPayload) error

	// SetStatus forces the status alone, used to surface AI failures as
	// needs review instead of leaving a document stuck in processing.
	SetStatus(ctx context.Context, id int64, status domain.InvoiceStatus) error
}
