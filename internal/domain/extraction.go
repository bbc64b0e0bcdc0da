package domain

import "github.com/shopspring/decimal"

// OrderLine is one AI-extracted invoice line item. Amounts are decoded as
// decimals straight from the JSON literal, so equality checks are exact.
type OrderLine struct {
	Description         string          `json:"description"`
	Qty                 decimal.Decimal `json:"qty"`
	Price               decimal.Decimal `json:"price"`
	Total               decimal.Decimal `json:"total"`
	ExpectedTotal       decimal.Decimal `json:"expected_total"`
	CalculatedCorrectly bool            `json:"calculated_correctly"`
}

// ExtractionDetails holds the identifying fields the AI read off the document.
type ExtractionDetails struct {
	InvoiceNumber string `json:"invoice_number"`
	SupplierName  string `json:"supplier_name,omitempty"`
	InvoiceDate   string `json:"invoice_date,omitempty"`
	DueDate       string `json:"due_date,omitempty"`
}

// ExtractionTotals holds document-level totals. A missing grand total decodes
// to zero, which the validator then compares against the line-total sum.
type ExtractionTotals struct {
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// CalculationValidation summarizes the validator's arithmetic checks. It is
// stored alongside the orders it was computed from; recomputing from the
// orders must reproduce the stored invoice status.
type CalculationValidation struct {
	LineItemsCorrect   bool            `json:"line_items_correct"`
	GrandTotalCorrect  bool            `json:"grand_total_correct"`
	SumOfLineTotals    decimal.Decimal `json:"sum_of_line_totals"`
	DocumentGrandTotal decimal.Decimal `json:"document_grand_total"`
	Discrepancies      []string        `json:"discrepancies"`
}

// ExtractionPayload is the structured AI output for an invoice document,
// augmented in place by the line-item validator.
type ExtractionPayload struct {
	Orders                []OrderLine            `json:"orders"`
	Details               ExtractionDetails      `json:"details"`
	Totals                ExtractionTotals       `json:"totals"`
	Status                string                 `json:"status,omitempty"`
	InvalidReason         string                 `json:"invalid_reason,omitempty"`
	CalculationValidation *CalculationValidation `json:"calculation_validation,omitempty"`
}

// ReceiptExtraction is the structured AI output for an end-of-day sales
// receipt (Z-read).
type ReceiptExtraction struct {
	IsValidSalesReceipt bool            `json:"is_valid_sales_receipt"`
	TotalSales          decimal.Decimal `json:"total_sales"`
	Reason              string          `json:"reason,omitempty"`
}

// InsightData is the structured AI output for one entity summarization.
type InsightData struct {
	Name                string   `json:"name"`
	TypeOfInsight       string   `json:"typeOfInsight"`
	InsightType         string   `json:"insightType"`
	Urgency             int      `json:"urgency"`
	ImpactValue         float64  `json:"impactValue"`
	ImpactUnit          string   `json:"impactUnit"`
	OverallSummary      string   `json:"overall_summary"`
	Recommendations     []string `json:"recommendations"`
	AnalysisDetails     string   `json:"analysis_details"`
	DataConfidenceLevel string   `json:"data_confidence_level"`
	FinancialRiskLevel  string   `json:"financial_risk_level"`
	TimeToImpact        string   `json:"time_to_impact"`
}
