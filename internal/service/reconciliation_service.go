package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/platewise/backoffice/internal/ai"
	"github.com/platewise/backoffice/internal/domain"
	"github.com/platewise/backoffice/internal/repository"
	"github.com/platewise/backoffice/internal/storage"
)

var (
	// breakdownTolerance: a breakdown may exceed the receipt by at most 5
	// cents before it is rejected outright.
	breakdownTolerance = decimal.New(-5, -2)
	// reviewThreshold: relative variance above 2% flags the day for review.
	reviewThreshold = decimal.New(2, -2)
)

// RecipeCostProvider supplies a recipe's current unit cost-of-goods.
type RecipeCostProvider interface {
	RecipeUnitCogs(ctx context.Context, recipeID int64) (*domain.Recipe, decimal.Decimal, error)
}

// BreakdownInput is one manually entered recipe line of a day's sales.
type BreakdownInput struct {
	RecipeID    int64           `json:"recipe_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	ActualPrice decimal.Decimal `json:"actual_price"`
}

// ReconciliationService matches AI-extracted Z-read totals against manually
// entered recipe breakdowns and drives the record's state machine.
type ReconciliationService struct {
	recs      repository.ReconciliationRepository
	costs     RecipeCostProvider
	extractor ai.Extractor
	files     storage.ObjectStorage
}

func NewReconciliationService(recs repository.ReconciliationRepository, costs RecipeCostProvider, extractor ai.Extractor, files storage.ObjectStorage) *ReconciliationService {
	return &ReconciliationService{
		recs:      recs,
		costs:     costs,
		extractor: extractor,
		files:     files,
	}
}

// GetOrCreate returns the active record for the branch and day. Repeated
// fetches return the same record until it is confirmed; after confirmation a
// fresh pending record is started.
func (s *ReconciliationService) GetOrCreate(ctx context.Context, branch string, date time.Time) (*domain.SalesReconciliation, error) {
	return s.recs.GetOrCreateActive(ctx, branch, date)
}

func (s *ReconciliationService) Get(ctx context.Context, id int64) (*domain.SalesReconciliation, error) {
	return s.recs.Get(ctx, id)
}

func (s *ReconciliationService) List(ctx context.Context, branch string) ([]*domain.SalesReconciliation, error) {
	return s.recs.List(ctx, branch)
}

// UploadReceipt stores the Z-read image, extracts the day's total sales and
// decides the initial state: rejected for an invalid receipt or non-positive
// total, pending otherwise.
func (s *ReconciliationService) UploadReceipt(ctx context.Context, branch string, date time.Time, filename string, data []byte, mime string) (*domain.SalesReconciliation, error) {
	rec, err := s.recs.GetOrCreateActive(ctx, branch, date)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("receipts/%s/%s/%s%s", branch, date.Format("2006-01-02"), uuid.NewString(), filepath.Ext(filename))
	if err := s.files.Put(ctx, key, data, mime); err != nil {
		return nil, fmt.Errorf("store receipt file: %w", err)
	}
	rec.ReceiptFileKey = key

	extraction, err := s.extractor.ExtractReceipt(ctx, data, mime)
	if err != nil {
		// A transport failure or malformed output must not leave the day
		// looking untouched; park it in needs_review and surface the error.
		log.Error().Err(err).Int64("reconciliation_id", rec.ID).Msg("receipt extraction failed")
		rec.Status = domain.ReconciliationNeedsReview
		if saveErr := s.recs.Save(ctx, rec); saveErr != nil {
			log.Error().Err(saveErr).Int64("reconciliation_id", rec.ID).Msg("failed to park reconciliation in needs_review")
		}
		return nil, fmt.Errorf("receipt extraction failed: %w", err)
	}

	if !extraction.IsValidSalesReceipt || extraction.TotalSales.LessThanOrEqual(decimal.Zero) {
		rec.Status = domain.ReconciliationRejected
		rec.TotalSalesFromReceipt = decimal.Zero
		rec.TotalBreakdownSales = decimal.Zero
		rec.TotalCogs = decimal.Zero
		rec.Variance = decimal.Zero
		rec.GrossMargin = decimal.Zero
		rec.RecipeBreakdown = []domain.BreakdownItem{}
		if err := s.recs.Save(ctx, rec); err != nil {
			return nil, err
		}
		log.Warn().
			Int64("reconciliation_id", rec.ID).
			Str("reason", extraction.Reason).
			Msg("sales receipt rejected")
		return rec, nil
	}

	// A fresh valid receipt is the authoritative truth for the day.
	rec.Status = domain.ReconciliationPending
	rec.TotalSalesFromReceipt = extraction.TotalSales
	rec.Variance = extraction.TotalSales.Sub(rec.TotalBreakdownSales)
	if err := s.recs.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateBreakdown recomputes COGS and sales totals from the entered recipe
// lines. A breakdown exceeding the receipt beyond tolerance is a hard
// validation error with no state change. The 2% auto-classification runs
// only while the record is still pending; once flagged needs_review it is
// never auto-reverted.
func (s *ReconciliationService) UpdateBreakdown(ctx context.Context, id int64, items []BreakdownInput) (*domain.SalesReconciliation, error) {
	rec, err := s.recs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Status.CanUpdateBreakdown() {
		return nil, domain.ErrInvalidTransition
	}

	breakdown := make([]domain.BreakdownItem, 0, len(items))
	totalSales := decimal.Zero
	totalCogs := decimal.Zero
	for _, item := range items {
		recipe, unitCogs, err := s.costs.RecipeUnitCogs(ctx, item.RecipeID)
		if err != nil {
			return nil, fmt.Errorf("look up recipe %d: %w", item.RecipeID, err)
		}

		line := domain.BreakdownItem{
			RecipeID:    item.RecipeID,
			Name:        recipe.Name,
			Quantity:    item.Quantity,
			ActualPrice: item.ActualPrice,
			UnitCogs:    unitCogs,
			TotalCogs:   unitCogs.Mul(item.Quantity),
			TotalSale:   item.ActualPrice.Mul(item.Quantity),
		}
		breakdown = append(breakdown, line)
		totalSales = totalSales.Add(line.TotalSale)
		totalCogs = totalCogs.Add(line.TotalCogs)
	}

	variance := rec.TotalSalesFromReceipt.Sub(totalSales)
	if variance.LessThan(breakdownTolerance) {
		return nil, domain.ErrBreakdownExceedsReceipt
	}

	rec.RecipeBreakdown = breakdown
	rec.TotalBreakdownSales = totalSales
	rec.TotalCogs = totalCogs
	rec.Variance = variance
	rec.GrossMargin = grossMargin(totalSales, totalCogs)

	if rec.Status == domain.ReconciliationPending && s.exceedsReviewThreshold(rec) {
		rec.Status = domain.ReconciliationNeedsReview
	}

	if err := s.recs.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ConfirmAndClose closes the record as reconciled regardless of variance; a
// manual override of the review gate.
func (s *ReconciliationService) ConfirmAndClose(ctx context.Context, id int64) (*domain.SalesReconciliation, error) {
	return s.setStatus(ctx, id, domain.ReconciliationReconciled)
}

// FlagForReview marks any non-terminal record for review.
func (s *ReconciliationService) FlagForReview(ctx context.Context, id int64) (*domain.SalesReconciliation, error) {
	return s.setStatus(ctx, id, domain.ReconciliationNeedsReview)
}

func (s *ReconciliationService) setStatus(ctx context.Context, id int64, target domain.ReconciliationStatus) (*domain.SalesReconciliation, error) {
	rec, err := s.recs.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch target {
	case domain.ReconciliationReconciled:
		if !rec.Status.CanConfirm() {
			return nil, domain.ErrInvalidTransition
		}
	case domain.ReconciliationNeedsReview:
		if !rec.Status.CanFlag() {
			return nil, domain.ErrInvalidTransition
		}
	default:
		return nil, domain.ErrInvalidTransition
	}

	rec.Status = target
	if err := s.recs.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *ReconciliationService) exceedsReviewThreshold(rec *domain.SalesReconciliation) bool {
	if rec.TotalSalesFromReceipt.IsZero() {
		return true
	}
	ratio := rec.Variance.Abs().Div(rec.TotalSalesFromReceipt)
	return ratio.GreaterThan(reviewThreshold)
}

func grossMargin(sales, cogs decimal.Decimal) decimal.Decimal {
	if sales.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return sales.Sub(cogs).Div(sales).Mul(decimal.NewFromInt(100))
}
