package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/platewise/backoffice/internal/domain"
)

// SupplierActivity aggregates what a supplier is worth analyzing on.
type SupplierActivity struct {
	InvoiceCount    int             `db:"invoice_count"`
	TotalSpend      decimal.Decimal `db:"total_spend"`
	IngredientCount int             `db:"ingredient_count"`
}

// CatalogRepository persists suppliers, ingredients with their append-only
// price history, and recipes with their ingredient lines.
type CatalogRepository interface {
	CreateSupplier(ctx context.Context, s *domain.Supplier) error
	GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]*domain.Supplier, error)

	// CreateIngredient inserts the ingredient and its first price-history
	// entry in one transaction.
	CreateIngredient(ctx context.Context, ing *domain.Ingredient, price decimal.Decimal) error
	// UpdateIngredient updates descriptive fields and, when newPrice is
	// non-nil, appends a price-history entry. History is never mutated.
	UpdateIngredient(ctx context.Context, ing *domain.Ingredient, newPrice *decimal.Decimal) error
	GetIngredient(ctx context.Context, id int64) (*domain.Ingredient, error)
	ListIngredients(ctx context.Context) ([]*domain.Ingredient, error)
	PriceHistory(ctx context.Context, ingredientID int64, limit int) ([]domain.PriceHistoryEntry, error)

	CreateRecipe(ctx context.Context, r *domain.Recipe) error
	UpdateRecipe(ctx context.Context, r *domain.Recipe) error
	// GetRecipe loads the recipe with its ingredient lines and each line's
	// current price (latest history entry, zero when none exists).
	GetRecipe(ctx context.Context, id int64) (*domain.Recipe, error)
	ListRecipes(ctx context.Context) ([]*domain.Recipe, error)
	// RecipesUsingIngredient returns every recipe with a line for the
	// ingredient, loaded the same way GetRecipe loads them.
	RecipesUsingIngredient(ctx context.Context, ingredientID int64) ([]*domain.Recipe, error)

	SupplierActivity(ctx context.Context, supplierID int64) (*SupplierActivity, error)
}
