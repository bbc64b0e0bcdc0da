package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/platewise/backoffice/internal/ai"
	"github.com/platewise/backoffice/internal/domain"
	"github.com/platewise/backoffice/internal/repository"
	"github.com/platewise/backoffice/internal/storage"
	"github.com/platewise/backoffice/internal/validation"
)

const missingStructureReason = "Missing invoice structure"

// InvoiceService drives the invoice lifecycle:
// uploaded → processing → processed | needs review | rejected.
// Processing runs synchronously end to end, including the blocking AI call;
// a failed call always lands the invoice in needs review, never stuck in
// processing.
type InvoiceService struct {
	invoices  repository.InvoiceRepository
	catalog   repository.CatalogRepository
	extractor ai.Extractor
	files     storage.ObjectStorage
}

func NewInvoiceService(invoices repository.InvoiceRepository, catalog repository.CatalogRepository, extractor ai.Extractor, files storage.ObjectStorage) *InvoiceService {
	return &InvoiceService{
		invoices:  invoices,
		catalog:   catalog,
		extractor: extractor,
		files:     files,
	}
}

// Upload stores the document and creates the invoice row in uploaded status
// with a system-generated placeholder number. The placeholder is superseded
// by the number the AI reads off the physical document.
func (s *InvoiceService) Upload(ctx context.Context, supplierID int64, filename string, data []byte, mime string) (*domain.Invoice, error) {
	supplier, err := s.catalog.GetSupplier(ctx, supplierID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("invoices/%d/%s%s", supplierID, uuid.NewString(), filepath.Ext(filename))
	if err := s.files.Put(ctx, key, data, mime); err != nil {
		return nil, fmt.Errorf("store invoice file: %w", err)
	}

	inv := &domain.Invoice{
		SupplierID:    supplierID,
		SupplierName:  supplier.Name,
		InvoiceNumber: generateInvoiceNumber(supplier.Name, time.Now()),
		FileKey:       key,
		FileMime:      mime,
		Total:         decimal.Zero,
		Status:        domain.InvoiceUploaded,
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *InvoiceService) Get(ctx context.Context, id int64) (*domain.Invoice, error) {
	return s.invoices.Get(ctx, id)
}

func (s *InvoiceService) List(ctx context.Context, supplierID int64) ([]*domain.Invoice, error) {
	if supplierID > 0 {
		return s.invoices.ListBySupplier(ctx, supplierID)
	}
	return s.invoices.List(ctx)
}

// Process claims the invoice, re-reads the stored document, runs AI
// extraction and validation, and persists the outcome atomically.
func (s *InvoiceService) Process(ctx context.Context, id int64) (*domain.Invoice, error) {
	claimed, err := s.invoices.ClaimProcessing(ctx, id)
	if err != nil {
		return nil, err
	}

	payload, err := s.extract(ctx, claimed)
	if err != nil {
		// Transport failures and malformed output are transient: park the
		// document in needs review so a retry can re-trigger processing.
		log.Error().Err(err).Int64("invoice_id", id).Msg("invoice extraction failed")
		if stErr := s.invoices.SetStatus(ctx, id, domain.InvoiceNeedsReview); stErr != nil {
			log.Error().Err(stErr).Int64("invoice_id", id).Msg("failed to park invoice in needs review")
		}
		return nil, fmt.Errorf("invoice extraction failed: %w", err)
	}

	// The extraction is untrusted even when it parses as JSON.
	if payload.Status == "invalid" {
		return s.reject(ctx, claimed, payload, payload.InvalidReason)
	}
	if len(payload.Orders) == 0 || payload.Details.InvoiceNumber == "" {
		return s.reject(ctx, claimed, payload, missingStructureReason)
	}

	result := validation.ValidateLineItems(payload)

	// The AI-read number, dates and total from the physical document
	// supersede the system-generated placeholder.
	if err := s.invoices.SaveExtractionResult(ctx, id, result.Status,
		payload.Details.InvoiceNumber,
		parseDocumentDate(payload.Details.InvoiceDate), parseDocumentDate(payload.Details.DueDate),
		payload.Totals.GrandTotal, payload); err != nil {
		return nil, err
	}

	log.Info().
		Int64("invoice_id", id).
		Str("status", string(result.Status)).
		Int("discrepancies", len(result.Validation.Discrepancies)).
		Msg("invoice processed")

	return s.invoices.Get(ctx, id)
}

// UpdateItems applies a manual line-item correction and revalidates. A
// rejected invoice must be reprocessed, not edited.
func (s *InvoiceService) UpdateItems(ctx context.Context, id int64, orders []domain.OrderLine) (*domain.Invoice, error) {
	inv, err := s.invoices.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.Status.CanEditItems() || inv.ExtractedData == nil {
		return nil, domain.ErrInvalidTransition
	}

	result := validation.ApplyManualEdit(inv.ExtractedData, orders)

	if err := s.invoices.SaveValidation(ctx, id, result.Status, inv.Total, inv.ExtractedData); err != nil {
		return nil, err
	}
	return s.invoices.Get(ctx, id)
}

func (s *InvoiceService) extract(ctx context.Context, inv *domain.Invoice) (*domain.ExtractionPayload, error) {
	file, err := s.files.Get(ctx, inv.FileKey)
	if err != nil {
		return nil, fmt.Errorf("read stored document: %w", err)
	}

	mime := file.Mime
	if mime == "" {
		mime = inv.FileMime
	}
	return s.extractor.ExtractInvoice(ctx, file.Data, mime)
}

func (s *InvoiceService) reject(ctx context.Context, inv *domain.Invoice, payload *domain.ExtractionPayload, reason string) (*domain.Invoice, error) {
	if reason == "" {
		reason = "Document rejected by extraction"
	}
	payload.Status = string(domain.InvoiceRejected)
	payload.InvalidReason = reason

	log.Warn().Int64("invoice_id", inv.ID).Str("reason", reason).Msg("invoice rejected")

	// Rejection keeps the placeholder number, dates and total; nothing
	// trustworthy was read off the document.
	if err := s.invoices.SaveExtractionResult(ctx, inv.ID, domain.InvoiceRejected,
		inv.InvoiceNumber, inv.InvoiceDate, inv.DueDate, inv.Total, payload); err != nil {
		return nil, err
	}
	return s.invoices.Get(ctx, inv.ID)
}

// parseDocumentDate reads a YYYY-MM-DD date off the extracted details. An
// absent or garbled date is dropped rather than failing the whole document.
func parseDocumentDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		log.Warn().Str("date", value).Msg("unparseable document date dropped")
		return nil
	}
	return &t
}

// generateInvoiceNumber builds the placeholder {supplier-prefix}-{YYYYMMDD}-{random4}.
func generateInvoiceNumber(supplierName string, now time.Time) string {
	prefix := supplierPrefix(supplierName)
	random4 := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:4]
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), random4)
}

func supplierPrefix(name string) string {
	var b strings.Builder
	count := 0
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			count++
			if count >= 3 {
				break
			}
		}
	}
	if count == 0 {
		return "INV"
	}
	return b.String()
}
