package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/platewise/backoffice/internal/cache"
	"github.com/platewise/backoffice/internal/domain"
)

// memoryCostCache is an in-process stand-in for the redis cache.
type memoryCostCache struct {
	entries     map[int64]cache.RecipeCosting
	invalidated int
}

func newMemoryCostCache() *memoryCostCache {
	return &memoryCostCache{entries: make(map[int64]cache.RecipeCosting)}
}

func (c *memoryCostCache) Get(_ context.Context, recipeID int64) (*cache.RecipeCosting, bool, error) {
	entry, ok := c.entries[recipeID]
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (c *memoryCostCache) Set(_ context.Context, recipeID int64, costing cache.RecipeCosting) error {
	c.entries[recipeID] = costing
	return nil
}

func (c *memoryCostCache) InvalidateAll(context.Context) error {
	c.entries = make(map[int64]cache.RecipeCosting)
	c.invalidated++
	return nil
}

func seedPizza(t *testing.T, svc *CatalogService) *domain.Recipe {
	t.Helper()
	ctx := context.Background()

	supplier := &domain.Supplier{Name: "Fresh Fields Produce"}
	if err := svc.CreateSupplier(ctx, supplier); err != nil {
		t.Fatalf("CreateSupplier error: %v", err)
	}

	flour := &domain.Ingredient{SupplierID: supplier.ID, Name: "Flour 00", Unit: "kg"}
	if err := svc.CreateIngredient(ctx, flour, dec("2")); err != nil {
		t.Fatalf("CreateIngredient error: %v", err)
	}
	cheese := &domain.Ingredient{SupplierID: supplier.ID, Name: "Mozzarella", Unit: "kg"}
	if err := svc.CreateIngredient(ctx, cheese, dec("14")); err != nil {
		t.Fatalf("CreateIngredient error: %v", err)
	}

	recipe := &domain.Recipe{
		Name:         "Margherita Pizza",
		SellingPrice: dec("22"),
		Ingredients: []domain.RecipeIngredient{
			{IngredientID: flour.ID, Quantity: dec("0.5"), CurrentPrice: dec("2")},
			{IngredientID: cheese.ID, Quantity: dec("0.25"), CurrentPrice: dec("14")},
		},
	}
	if err := svc.CreateRecipe(ctx, recipe); err != nil {
		t.Fatalf("CreateRecipe error: %v", err)
	}
	return recipe
}

func TestGetRecipe_DerivesCostAndMargin(t *testing.T) {
	repo := newFakeCatalogRepo()
	svc := NewCatalogService(repo, newMemoryCostCache())
	recipe := seedPizza(t, svc)

	got, err := svc.GetRecipe(context.Background(), recipe.ID)
	if err != nil {
		t.Fatalf("GetRecipe error: %v", err)
	}

	// 0.5 × 2 + 0.25 × 14 = 4.50; margin (22 − 4.5) / 22 × 100.
	if !got.Cost.Equal(dec("4.5")) {
		t.Fatalf("cost: %s", got.Cost)
	}
	wantMargin := dec("17.5").Div(dec("22")).Mul(decimal.NewFromInt(100))
	if !got.Margin.Equal(wantMargin) {
		t.Fatalf("margin: %s, want %s", got.Margin, wantMargin)
	}
}

func TestGetRecipe_UsesAndFillsCache(t *testing.T) {
	repo := newFakeCatalogRepo()
	costCache := newMemoryCostCache()
	svc := NewCatalogService(repo, costCache)
	recipe := seedPizza(t, svc)
	ctx := context.Background()

	if _, ok := costCache.entries[recipe.ID]; !ok {
		t.Fatal("cost should be cached after hydration")
	}

	// A poisoned cache entry proves the cached value is served.
	costCache.entries[recipe.ID] = cache.RecipeCosting{Cost: dec("99"), Margin: dec("1")}
	got, err := svc.GetRecipe(ctx, recipe.ID)
	if err != nil {
		t.Fatalf("GetRecipe error: %v", err)
	}
	if !got.Cost.Equal(dec("99")) {
		t.Fatalf("expected cached cost, got %s", got.Cost)
	}
}

func TestUpdateIngredientPrice_InvalidatesCache(t *testing.T) {
	repo := newFakeCatalogRepo()
	costCache := newMemoryCostCache()
	svc := NewCatalogService(repo, costCache)
	recipe := seedPizza(t, svc)
	ctx := context.Background()

	flour, err := svc.GetIngredient(ctx, recipe.Ingredients[0].IngredientID)
	if err != nil {
		t.Fatalf("GetIngredient error: %v", err)
	}

	newPrice := dec("4")
	if err := svc.UpdateIngredient(ctx, flour, &newPrice); err != nil {
		t.Fatalf("UpdateIngredient error: %v", err)
	}

	if len(costCache.entries) != 0 {
		t.Fatal("price write must invalidate cached recipe costs")
	}

	// The new price is visible in history immediately.
	history, err := svc.PriceHistory(ctx, flour.ID, 10)
	if err != nil {
		t.Fatalf("PriceHistory error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
}

func TestUpdateIngredient_NoPriceKeepsCache(t *testing.T) {
	repo := newFakeCatalogRepo()
	costCache := newMemoryCostCache()
	svc := NewCatalogService(repo, costCache)
	recipe := seedPizza(t, svc)
	ctx := context.Background()

	invalidationsBefore := costCache.invalidated
	flour, _ := svc.GetIngredient(ctx, recipe.Ingredients[0].IngredientID)
	flour.Category = "dry goods"
	if err := svc.UpdateIngredient(ctx, flour, nil); err != nil {
		t.Fatalf("UpdateIngredient error: %v", err)
	}
	if costCache.invalidated != invalidationsBefore {
		t.Fatal("descriptive update must not invalidate the cost cache")
	}
}

func TestCreateIngredient_RejectsNegativePrice(t *testing.T) {
	repo := newFakeCatalogRepo()
	svc := NewCatalogService(repo, newMemoryCostCache())

	ing := &domain.Ingredient{Name: "Antimatter"}
	if err := svc.CreateIngredient(context.Background(), ing, dec("-1")); err == nil {
		t.Fatal("negative price must be rejected")
	}
}
