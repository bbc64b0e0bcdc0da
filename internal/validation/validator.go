package validation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/platewise/backoffice/internal/domain"
)

// Result is the document-level outcome of validating extracted line items.
type Result struct {
	Status     domain.InvoiceStatus
	Validation domain.CalculationValidation
}

// ValidateLineItems recomputes every extracted line total and the document
// grand total, augments the payload in place with per-line correctness flags
// and a calculation_validation summary, and decides the document status:
// processed when every check passes, needs review otherwise.
//
// Comparisons are exact decimal equality on the values as extracted. No
// rounding is applied; the document either adds up or it does not.
func ValidateLineItems(payload *domain.ExtractionPayload) Result {
	validation := domain.CalculationValidation{
		LineItemsCorrect:   true,
		GrandTotalCorrect:  true,
		DocumentGrandTotal: payload.Totals.GrandTotal,
		Discrepancies:      []string{},
	}

	sum := decimal.Zero
	for i := range payload.Orders {
		line := &payload.Orders[i]
		expected := line.Qty.Mul(line.Price)
		line.ExpectedTotal = expected
		line.CalculatedCorrectly = line.Total.Equal(expected)

		if !line.CalculatedCorrectly {
			validation.LineItemsCorrect = false
			validation.Discrepancies = append(validation.Discrepancies,
				fmt.Sprintf("%s: %s × %s = %s but shows %s",
					line.Description, line.Qty, line.Price, expected, line.Total))
		}

		sum = sum.Add(line.Total)
	}
	validation.SumOfLineTotals = sum

	if !sum.Equal(payload.Totals.GrandTotal) {
		validation.GrandTotalCorrect = false
		validation.Discrepancies = append(validation.Discrepancies,
			fmt.Sprintf("Sum of line totals: %s but Grand Total shows %s",
				sum, payload.Totals.GrandTotal))
	}

	status := domain.InvoiceProcessed
	if !validation.LineItemsCorrect || !validation.GrandTotalCorrect {
		status = domain.InvoiceNeedsReview
	}

	payload.CalculationValidation = &validation
	payload.Status = string(status)

	return Result{Status: status, Validation: validation}
}

// ApplyManualEdit replaces the payload's orders with manually corrected
// lines. Manual edits are trusted to be internally consistent, so each line
// total is forced to qty × price before revalidation; only the grand-total
// check can still fail.
func ApplyManualEdit(payload *domain.ExtractionPayload, orders []domain.OrderLine) Result {
	for i := range orders {
		orders[i].Total = orders[i].Qty.Mul(orders[i].Price)
	}
	payload.Orders = orders
	return ValidateLineItems(payload)
}
