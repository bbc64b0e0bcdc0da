package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/platewise/backoffice/internal/cache"
	"github.com/platewise/backoffice/internal/costing"
	"github.com/platewise/backoffice/internal/domain"
	"github.com/platewise/backoffice/internal/repository"
)

// CatalogService manages suppliers, ingredients and recipes. Recipe cost and
// margin are derived on every read from the current price snapshot; the
// redis cache is an explicit shortcut invalidated on each price write.
type CatalogService struct {
	repo      repository.CatalogRepository
	costCache cache.RecipeCostCache
}

func NewCatalogService(repo repository.CatalogRepository, costCache cache.RecipeCostCache) *CatalogService {
	return &CatalogService{repo: repo, costCache: costCache}
}

func (s *CatalogService) CreateSupplier(ctx context.Context, supplier *domain.Supplier) error {
	return s.repo.CreateSupplier(ctx, supplier)
}

func (s *CatalogService) GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

func (s *CatalogService) ListSuppliers(ctx context.Context) ([]*domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *CatalogService) CreateIngredient(ctx context.Context, ing *domain.Ingredient, price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("ingredient price must not be negative")
	}
	if err := s.repo.CreateIngredient(ctx, ing, price); err != nil {
		return err
	}
	s.invalidateCostCache(ctx)
	return nil
}

// UpdateIngredient updates descriptive fields; a non-nil newPrice appends a
// price-history entry and invalidates every cached recipe cost, since any
// recipe using the ingredient is affected immediately.
func (s *CatalogService) UpdateIngredient(ctx context.Context, ing *domain.Ingredient, newPrice *decimal.Decimal) error {
	if newPrice != nil && newPrice.IsNegative() {
		return fmt.Errorf("ingredient price must not be negative")
	}
	if err := s.repo.UpdateIngredient(ctx, ing, newPrice); err != nil {
		return err
	}
	if newPrice != nil {
		s.invalidateCostCache(ctx)
	}
	return nil
}

func (s *CatalogService) GetIngredient(ctx context.Context, id int64) (*domain.Ingredient, error) {
	return s.repo.GetIngredient(ctx, id)
}

func (s *CatalogService) ListIngredients(ctx context.Context) ([]*domain.Ingredient, error) {
	return s.repo.ListIngredients(ctx)
}

func (s *CatalogService) PriceHistory(ctx context.Context, ingredientID int64, limit int) ([]domain.PriceHistoryEntry, error) {
	return s.repo.PriceHistory(ctx, ingredientID, limit)
}

func (s *CatalogService) CreateRecipe(ctx context.Context, recipe *domain.Recipe) error {
	if err := s.repo.CreateRecipe(ctx, recipe); err != nil {
		return err
	}
	return s.hydrateRecipe(ctx, recipe)
}

func (s *CatalogService) UpdateRecipe(ctx context.Context, recipe *domain.Recipe) error {
	if err := s.repo.UpdateRecipe(ctx, recipe); err != nil {
		return err
	}
	s.invalidateCostCache(ctx)
	return s.hydrateRecipe(ctx, recipe)
}

func (s *CatalogService) GetRecipe(ctx context.Context, id int64) (*domain.Recipe, error) {
	recipe, err := s.repo.GetRecipe(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.hydrateRecipe(ctx, recipe); err != nil {
		return nil, err
	}
	return recipe, nil
}

func (s *CatalogService) ListRecipes(ctx context.Context) ([]*domain.Recipe, error) {
	recipes, err := s.repo.ListRecipes(ctx)
	if err != nil {
		return nil, err
	}
	for _, recipe := range recipes {
		if err := s.hydrateRecipe(ctx, recipe); err != nil {
			return nil, err
		}
	}
	return recipes, nil
}

// RecipeUnitCogs returns the recipe's current unit cost-of-goods. Consumed
// by the sales reconciliation engine.
func (s *CatalogService) RecipeUnitCogs(ctx context.Context, recipeID int64) (*domain.Recipe, decimal.Decimal, error) {
	recipe, err := s.GetRecipe(ctx, recipeID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return recipe, recipe.Cost, nil
}

// hydrateRecipe fills the derived cost and margin fields, consulting the
// cost cache when the recipe's lines are already known to it.
func (s *CatalogService) hydrateRecipe(ctx context.Context, recipe *domain.Recipe) error {
	if cached, ok, err := s.costCache.Get(ctx, recipe.ID); err == nil && ok {
		recipe.Cost = cached.Cost
		recipe.Margin = cached.Margin
		return nil
	} else if err != nil {
		log.Warn().Err(err).Int64("recipe_id", recipe.ID).Msg("recipe cost cache read failed")
	}

	lines := make([]costing.RecipeLine, 0, len(recipe.Ingredients))
	for _, ing := range recipe.Ingredients {
		lines = append(lines, costing.RecipeLine{
			IngredientID: ing.IngredientID,
			Quantity:     ing.Quantity,
			UnitPrice:    ing.CurrentPrice,
		})
	}

	recipe.Cost = costing.ComputeCost(lines)
	recipe.Margin = costing.ComputeMargin(recipe.SellingPrice, recipe.Cost)

	if err := s.costCache.Set(ctx, recipe.ID, cache.RecipeCosting{Cost: recipe.Cost, Margin: recipe.Margin}); err != nil {
		log.Warn().Err(err).Int64("recipe_id", recipe.ID).Msg("recipe cost cache write failed")
	}
	return nil
}

func (s *CatalogService) invalidateCostCache(ctx context.Context) {
	if err := s.costCache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("recipe cost cache invalidation failed")
	}
}
