package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Supplier is a vendor the restaurant buys from.
type Supplier struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	ABN       string    `json:"abn" db:"abn"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Ingredient is a purchasable raw material. Its current price is never
// stored on the row itself; it is always the latest price-history entry.
type Ingredient struct {
	ID         int64           `json:"id" db:"id"`
	SupplierID int64           `json:"supplier_id" db:"supplier_id"`
	Name       string          `json:"name" db:"name"`
	Category   string          `json:"category" db:"category"`
	Unit       string          `json:"unit" db:"unit"`
	// CurrentPrice is derived on read from the price-history log.
	CurrentPrice decimal.Decimal `json:"current_price" db:"current_price"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// PriceHistoryEntry is an append-only record of an ingredient price change.
type PriceHistoryEntry struct {
	ID           int64           `json:"id" db:"id"`
	IngredientID int64           `json:"ingredient_id" db:"ingredient_id"`
	Price        decimal.Decimal `json:"price" db:"price"`
	LogDate      time.Time       `json:"log_date" db:"log_date"`
}

// RecipeIngredient is one line of a recipe: an ingredient and the quantity
// consumed per unit sold.
type RecipeIngredient struct {
	IngredientID   int64           `json:"ingredient_id" db:"ingredient_id"`
	IngredientName string          `json:"ingredient_name" db:"ingredient_name"`
	Unit           string          `json:"unit" db:"unit"`
	Quantity       decimal.Decimal `json:"quantity" db:"quantity"`
	CurrentPrice   decimal.Decimal `json:"current_price" db:"current_price"`
}

// Recipe is a sellable menu item. Cost and margin are computed on read, so a
// price-history write is visible everywhere immediately.
type Recipe struct {
	ID           int64              `json:"id" db:"id"`
	Name         string             `json:"name" db:"name"`
	SellingPrice decimal.Decimal    `json:"selling_price" db:"selling_price"`
	TargetMargin *decimal.Decimal   `json:"target_margin,omitempty" db:"target_margin"`
	Ingredients  []RecipeIngredient `json:"ingredients" db:"-"`
	Cost         decimal.Decimal    `json:"cost" db:"-"`
	Margin       decimal.Decimal    `json:"margin" db:"-"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" db:"updated_at"`
}

// Invoice is a digitized supplier invoice.
type Invoice struct {
	ID            int64              `json:"id" db:"id"`
	SupplierID    int64              `json:"supplier_id" db:"supplier_id"`
	SupplierName  string             `json:"supplier_name" db:"supplier_name"`
	InvoiceNumber string             `json:"invoice_number" db:"invoice_number"`
	InvoiceDate   *time.Time         `json:"invoice_date,omitempty" db:"invoice_date"`
	DueDate       *time.Time         `json:"due_date,omitempty" db:"due_date"`
	FileKey       string             `json:"file_key" db:"file_key"`
	FileMime      string             `json:"file_mime" db:"file_mime"`
	Total         decimal.Decimal    `json:"total" db:"total"`
	Status        InvoiceStatus      `json:"status" db:"status"`
	ExtractedData *ExtractionPayload `json:"extracted_data,omitempty" db:"-"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" db:"updated_at"`
}

// BreakdownItem is one recipe line of a daily sales breakdown.
type BreakdownItem struct {
	RecipeID    int64           `json:"recipe_id"`
	Name        string          `json:"name"`
	Quantity    decimal.Decimal `json:"quantity"`
	ActualPrice decimal.Decimal `json:"actual_price"`
	UnitCogs    decimal.Decimal `json:"unit_cogs"`
	TotalCogs   decimal.Decimal `json:"total_cogs"`
	TotalSale   decimal.Decimal `json:"total_sale"`
}

// SalesReconciliation matches an end-of-day receipt total against a
// manually entered recipe-level breakdown.
type SalesReconciliation struct {
	ID                    int64                `json:"id" db:"id"`
	Branch                string               `json:"branch" db:"branch"`
	Date                  time.Time            `json:"date" db:"date"`
	Status                ReconciliationStatus `json:"status" db:"status"`
	ReceiptFileKey        string               `json:"receipt_file_key" db:"receipt_file_key"`
	TotalSalesFromReceipt decimal.Decimal      `json:"total_sales_from_receipt" db:"total_sales_from_receipt"`
	RecipeBreakdown       []BreakdownItem      `json:"recipe_breakdown" db:"-"`
	TotalBreakdownSales   decimal.Decimal      `json:"total_breakdown_sales" db:"total_breakdown_sales"`
	TotalCogs             decimal.Decimal      `json:"total_cogs" db:"total_cogs"`
	Variance              decimal.Decimal      `json:"variance" db:"variance"`
	GrossMargin           decimal.Decimal      `json:"gross_margin" db:"gross_margin"`
	CreatedAt             time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time            `json:"updated_at" db:"updated_at"`
}

// InsightEntityKind discriminates the polymorphic insight reference.
type InsightEntityKind string

const (
	InsightEntitySupplier   InsightEntityKind = "supplier"
	InsightEntityRecipe     InsightEntityKind = "recipe"
	InsightEntityIngredient InsightEntityKind = "ingredient"
)

// AiInsight is an AI-generated observation about one business entity.
// Insights are bulk-regenerated, never partially updated.
type AiInsight struct {
	ID         int64             `json:"id" db:"id"`
	EntityKind InsightEntityKind `json:"entity_kind" db:"entity_kind"`
	EntityID   int64             `json:"entity_id" db:"entity_id"`
	Data       InsightData       `json:"data" db:"-"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}

// KpiMilestone is one checkpoint of a tracked KPI.
type KpiMilestone struct {
	Name        string          `json:"name"`
	TargetDate  time.Time       `json:"target_date"`
	TargetValue decimal.Decimal `json:"target_value"`
}

// Kpi promotes an insight to a tracked goal. Exactly one KPI per insight.
type Kpi struct {
	ID            int64           `json:"id" db:"id"`
	AiInsightID   int64           `json:"ai_insight_id" db:"ai_insight_id"`
	Title         string          `json:"title" db:"title"`
	BaselineValue decimal.Decimal `json:"baseline_value" db:"baseline_value"`
	TargetValue   decimal.Decimal `json:"target_value" db:"target_value"`
	StartDate     time.Time       `json:"start_date" db:"start_date"`
	EndDate       time.Time       `json:"end_date" db:"end_date"`
	Milestones    []KpiMilestone  `json:"milestones" db:"-"`
	Status        string          `json:"status" db:"status"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}
