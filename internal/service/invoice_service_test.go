package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/platewise/backoffice/internal/domain"
)

func newInvoiceFixture(t *testing.T, extractor *fakeExtractor) (*InvoiceService, *fakeInvoiceRepo, *fakeStorage) {
	t.Helper()
	catalog := newFakeCatalogRepo()
	catalog.suppliers[1] = &domain.Supplier{ID: 1, Name: "Fresh Fields Produce"}
	invoices := newFakeInvoiceRepo()
	files := newFakeStorage()
	return NewInvoiceService(invoices, catalog, extractor, files), invoices, files
}

func validPayload() *domain.ExtractionPayload {
	return &domain.ExtractionPayload{
		Orders: []domain.OrderLine{
			{Description: "Tomatoes", Qty: dec("10"), Price: dec("4.50"), Total: dec("45")},
		},
		Details: domain.ExtractionDetails{InvoiceNumber: "FF-1042", InvoiceDate: "2026-08-20", DueDate: "2026-09-19"},
		Totals:  domain.ExtractionTotals{GrandTotal: dec("45")},
		Status:  "valid",
	}
}

func TestUpload(t *testing.T) {
	svc, _, files := newInvoiceFixture(t, &fakeExtractor{})

	inv, err := svc.Upload(context.Background(), 1, "invoice.jpg", []byte("img"), "image/jpeg")
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	if inv.Status != domain.InvoiceUploaded {
		t.Fatalf("status: %s", inv.Status)
	}
	placeholder := regexp.MustCompile(`^FRE-\d{8}-[0-9A-F]{4}$`)
	if !placeholder.MatchString(inv.InvoiceNumber) {
		t.Fatalf("placeholder number %q does not match pattern", inv.InvoiceNumber)
	}
	if _, err := files.Get(context.Background(), inv.FileKey); err != nil {
		t.Fatalf("document not stored under %s", inv.FileKey)
	}
	if !inv.Total.IsZero() {
		t.Fatalf("fresh invoice should have zero total, got %s", inv.Total)
	}
}

func TestUpload_UnknownSupplier(t *testing.T) {
	svc, _, _ := newInvoiceFixture(t, &fakeExtractor{})

	if _, err := svc.Upload(context.Background(), 99, "invoice.jpg", []byte("img"), "image/jpeg"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProcess_Success(t *testing.T) {
	extractor := &fakeExtractor{
		invoiceFn: func(ctx context.Context, image []byte, mime string) (*domain.ExtractionPayload, error) {
			return validPayload(), nil
		},
	}
	svc, _, _ := newInvoiceFixture(t, extractor)

	uploaded, err := svc.Upload(context.Background(), 1, "invoice.jpg", []byte("img"), "image/jpeg")
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	inv, err := svc.Process(context.Background(), uploaded.ID)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if inv.Status != domain.InvoiceProcessed {
		t.Fatalf("status: %s", inv.Status)
	}
	// Document-read fields supersede the placeholder.
	if inv.InvoiceNumber != "FF-1042" {
		t.Fatalf("invoice number: %s", inv.InvoiceNumber)
	}
	if !inv.Total.Equal(dec("45")) {
		t.Fatalf("total: %s", inv.Total)
	}
	if inv.ExtractedData == nil || inv.ExtractedData.CalculationValidation == nil {
		t.Fatal("extracted data with validation summary must be persisted")
	}
	if !inv.ExtractedData.CalculationValidation.LineItemsCorrect {
		t.Fatal("line items should validate")
	}
	if inv.InvoiceDate == nil || !inv.InvoiceDate.Equal(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("invoice date not persisted: %v", inv.InvoiceDate)
	}
	if inv.DueDate == nil || !inv.DueDate.Equal(time.Date(2026, 9, 19, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("due date not persisted: %v", inv.DueDate)
	}
}

func TestProcess_ArithmeticMismatchNeedsReview(t *testing.T) {
	extractor := &fakeExtractor{
		invoiceFn: func(ctx context.Context, image []byte, mime string) (*domain.ExtractionPayload, error) {
			payload := validPayload()
			payload.Orders[0].Total = dec("50")
			payload.Totals.GrandTotal = dec("50")
			return payload, nil
		},
	}
	svc, _, _ := newInvoiceFixture(t, extractor)

	uploaded, _ := svc.Upload(context.Background(), 1, "invoice.jpg", []byte("img"), "image/jpeg")
	inv, err := svc.Process(context.Background(), uploaded.ID)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if inv.Status != domain.InvoiceNeedsReview {
		t.Fatalf("status: %s", inv.Status)
	}
	if len(inv.ExtractedData.CalculationValidation.Discrepancies) == 0 {
		t.Fatal("discrepancies must be recorded")
	}
}

func TestProcess_ConflictWhileProcessing(t *testing.T) {
	svc, repo, _ := newInvoiceFixture(t, &fakeExtractor{})

	uploaded, _ := svc.Upload(context.Background(), 1, "invoice.jpg", []byte("img"), "image/jpeg")
	repo.invoices[uploaded.ID].Status = domain.InvoiceProcessing

	if _, err := svc.Process(context.Background(), uploaded.ID); !errors.Is(err, domain.ErrAlreadyProcessing) {
		t.Fatalf("expected ErrAlreadyProcessing, got %v", err)
	}
}

func TestProcess_AIFailureParksInNeedsReview(t *testing.T) {
	boom := errors.New("model timeout")
	extractor := &fakeExtractor{
		invoiceFn: func(ctx context.Context, image []byte, mime string) (*domain.ExtractionPayload, error) {
			return nil, boom
		},
	}
	svc, repo, _ := newInvoiceFixture(t, extractor)

	uploaded, _ := svc.Upload(context.Background(), 1, "invoice.jpg", []byte("img"), "image/jpeg")
	if _, err := svc.Process(context.Background(), uploaded.ID); !errors.Is(err, boom) {
		t.Fatalf("expected extraction error, got %v", err)
	}

	// The document must never stay stuck in processing.
	if got := repo.invoices[uploaded.ID].Status; got != domain.InvoiceNeedsReview {
		t.Fatalf("expected needs review after AI failure, got %s", got)
	}
}

func TestProcess_InvalidDocumentRejected(t *testing.T) {
	extractor := &fakeExtractor{
		invoiceFn: func(ctx context.Context, image []byte, mime string) (*domain.ExtractionPayload, error) {
			return &domain.ExtractionPayload{Status: "invalid", InvalidReason: "Not an invoice"}, nil
		},
	}
	svc, _, _ := newInvoiceFixture(t, extractor)

	uploaded, _ := svc.Upload(context.Background(), 1, "invoice.jpg", []byte("img"), "image/jpeg")
	placeholder := uploaded.InvoiceNumber

	inv, err := svc.Process(context.Background(), uploaded.ID)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if inv.Status != domain.InvoiceRejected {
		t.Fatalf("status: %s", inv.Status)
	}
	// Nothing trustworthy was read, so the placeholder survives.
	if inv.InvoiceNumber != placeholder {
		t.Fatalf("placeholder replaced: %s", inv.InvoiceNumber)
	}
	if inv.ExtractedData.InvalidReason != "Not an invoice" {
		t.Fatalf("reason: %s", inv.ExtractedData.InvalidReason)
	}
}

func TestProcess_MissingStructureRejected(t *testing.T) {
	extractor := &fakeExtractor{
		invoiceFn: func(ctx context.Context, image []byte, mime string) (*domain.ExtractionPayload, error) {
			payload := validPayload()
			payload.Orders = nil
			return payload, nil
		},
	}
	svc, _, _ := newInvoiceFixture(t, extractor)

	uploaded, _ := svc.Upload(context.Background(), 1, "invoice.jpg", []byte("img"), "image/jpeg")
	inv, err := svc.Process(context.Background(), uploaded.ID)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if inv.Status != domain.InvoiceRejected {
		t.Fatalf("status: %s", inv.Status)
	}
	if inv.ExtractedData.InvalidReason != "Missing invoice structure" {
		t.Fatalf("reason: %s", inv.ExtractedData.InvalidReason)
	}
}

func TestProcess_ReprocessAfterRejection(t *testing.T) {
	calls := 0
	extractor := &fakeExtractor{
		invoiceFn: func(ctx context.Context, image []byte, mime string) (*domain.ExtractionPayload, error) {
			calls++
			if calls == 1 {
				return &domain.ExtractionPayload{Status: "invalid", InvalidReason: "blurry"}, nil
			}
			return validPayload(), nil
		},
	}
	svc, _, _ := newInvoiceFixture(t, extractor)

	uploaded, _ := svc.Upload(context.Background(), 1, "invoice.jpg", []byte("img"), "image/jpeg")

	inv, err := svc.Process(context.Background(), uploaded.ID)
	if err != nil || inv.Status != domain.InvoiceRejected {
		t.Fatalf("first pass: %v, %s", err, inv.Status)
	}

	inv, err = svc.Process(context.Background(), uploaded.ID)
	if err != nil {
		t.Fatalf("reprocess error: %v", err)
	}
	if inv.Status != domain.InvoiceProcessed {
		t.Fatalf("reprocess status: %s", inv.Status)
	}
}

func TestUpdateItems(t *testing.T) {
	extractor := &fakeExtractor{
		invoiceFn: func(ctx context.Context, image []byte, mime string) (*domain.ExtractionPayload, error) {
			payload := validPayload()
			payload.Orders[0].Total = dec("50") // wrong on purpose
			return payload, nil
		},
	}
	svc, _, _ := newInvoiceFixture(t, extractor)

	uploaded, _ := svc.Upload(context.Background(), 1, "invoice.jpg", []byte("img"), "image/jpeg")
	inv, _ := svc.Process(context.Background(), uploaded.ID)
	if inv.Status != domain.InvoiceNeedsReview {
		t.Fatalf("precondition: %s", inv.Status)
	}

	corrected := []domain.OrderLine{
		{Description: "Tomatoes", Qty: dec("10"), Price: dec("4.50")},
	}
	inv, err := svc.UpdateItems(context.Background(), uploaded.ID, corrected)
	if err != nil {
		t.Fatalf("UpdateItems error: %v", err)
	}
	if inv.Status != domain.InvoiceProcessed {
		t.Fatalf("status after correction: %s", inv.Status)
	}
	if !inv.ExtractedData.Orders[0].Total.Equal(dec("45")) {
		t.Fatalf("line total not recomputed: %s", inv.ExtractedData.Orders[0].Total)
	}
}

func TestUpdateItems_RepeatedCorrectionIsStable(t *testing.T) {
	extractor := &fakeExtractor{
		invoiceFn: func(ctx context.Context, image []byte, mime string) (*domain.ExtractionPayload, error) {
			payload := validPayload()
			payload.Orders[0].Total = dec("50") // wrong on purpose
			return payload, nil
		},
	}
	svc, _, _ := newInvoiceFixture(t, extractor)

	uploaded, _ := svc.Upload(context.Background(), 1, "invoice.jpg", []byte("img"), "image/jpeg")
	if _, err := svc.Process(context.Background(), uploaded.ID); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	corrected := []domain.OrderLine{
		{Description: "Tomatoes", Qty: dec("10"), Price: dec("4.50")},
	}
	first, err := svc.UpdateItems(context.Background(), uploaded.ID, corrected)
	if err != nil {
		t.Fatalf("first UpdateItems error: %v", err)
	}
	second, err := svc.UpdateItems(context.Background(), uploaded.ID, corrected)
	if err != nil {
		t.Fatalf("second UpdateItems error: %v", err)
	}

	// Submitting the same correction twice must leave the stored record
	// exactly where the first submission put it.
	if first.Status != second.Status {
		t.Fatalf("status drifted: %s then %s", first.Status, second.Status)
	}
	if !first.Total.Equal(second.Total) {
		t.Fatalf("total drifted: %s then %s", first.Total, second.Total)
	}
	firstData, err := json.Marshal(first.ExtractedData)
	if err != nil {
		t.Fatalf("marshal first payload: %v", err)
	}
	secondData, err := json.Marshal(second.ExtractedData)
	if err != nil {
		t.Fatalf("marshal second payload: %v", err)
	}
	if !bytes.Equal(firstData, secondData) {
		t.Fatalf("stored payload drifted:\nfirst  %s\nsecond %s", firstData, secondData)
	}
}

func TestProcess_GarbledDatesDropped(t *testing.T) {
	extractor := &fakeExtractor{
		invoiceFn: func(ctx context.Context, image []byte, mime string) (*domain.ExtractionPayload, error) {
			payload := validPayload()
			payload.Details.InvoiceDate = "late August"
			payload.Details.DueDate = ""
			return payload, nil
		},
	}
	svc, _, _ := newInvoiceFixture(t, extractor)

	uploaded, _ := svc.Upload(context.Background(), 1, "invoice.jpg", []byte("img"), "image/jpeg")
	inv, err := svc.Process(context.Background(), uploaded.ID)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	// A date the AI could not read cleanly never blocks the document.
	if inv.Status != domain.InvoiceProcessed {
		t.Fatalf("status: %s", inv.Status)
	}
	if inv.InvoiceDate != nil || inv.DueDate != nil {
		t.Fatalf("garbled dates should stay null, got %v / %v", inv.InvoiceDate, inv.DueDate)
	}
}

func TestUpdateItems_InvalidStates(t *testing.T) {
	svc, repo, _ := newInvoiceFixture(t, &fakeExtractor{})
	uploaded, _ := svc.Upload(context.Background(), 1, "invoice.jpg", []byte("img"), "image/jpeg")

	for _, status := range []domain.InvoiceStatus{domain.InvoiceUploaded, domain.InvoiceProcessing, domain.InvoiceRejected} {
		repo.invoices[uploaded.ID].Status = status
		if _, err := svc.UpdateItems(context.Background(), uploaded.ID, nil); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("status %s: expected ErrInvalidTransition, got %v", status, err)
		}
	}

	// Editable status but no extraction payload yet.
	repo.invoices[uploaded.ID].Status = domain.InvoiceNeedsReview
	repo.invoices[uploaded.ID].ExtractedData = nil
	if _, err := svc.UpdateItems(context.Background(), uploaded.ID, nil); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("no payload: expected ErrInvalidTransition, got %v", err)
	}
}

func TestSupplierPrefix(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Fresh Fields Produce", "FRE"},
		{"a1 foods", "A1F"},
		{"明治 Dairy", "明治D"},
		{"!!!", "INV"},
		{"", "INV"},
	}
	for _, tc := range cases {
		if got := supplierPrefix(tc.name); got != tc.want {
			t.Errorf("supplierPrefix(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}
