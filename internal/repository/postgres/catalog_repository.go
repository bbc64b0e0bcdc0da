package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/platewise/backoffice/internal/domain"
	"github.com/platewise/backoffice/internal/repository"
)

// currentPriceExpr derives an ingredient's price from the newest
// price-history entry. Prices are never stored on the ingredient row.
const currentPriceExpr = `COALESCE((
	SELECT ph.price FROM price_history ph
	WHERE ph.ingredient_id = i.id
	ORDER BY ph.log_date DESC, ph.id DESC
	LIMIT 1
), 0)`

type catalogRepository struct {
	db *DB
}

func NewCatalogRepository(db *DB) repository.CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) CreateSupplier(ctx context.Context, s *domain.Supplier) error {
	query := `
		INSERT INTO suppliers (name, abn, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query, s.Name, s.ABN, s.Email, s.Phone).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert supplier: %w", err)
	}
	return nil
}

func (r *catalogRepository) GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error) {
	var s domain.Supplier
	err := r.db.GetContext(ctx, &s, `SELECT * FROM suppliers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch supplier: %w", err)
	}
	return &s, nil
}

func (r *catalogRepository) ListSuppliers(ctx context.Context) ([]*domain.Supplier, error) {
	suppliers := make([]*domain.Supplier, 0)
	if err := r.db.SelectContext(ctx, &suppliers, `SELECT * FROM suppliers ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	return suppliers, nil
}

func (r *catalogRepository) CreateIngredient(ctx context.Context, ing *domain.Ingredient, price decimal.Decimal) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO ingredients (supplier_id, name, category, unit, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			RETURNING id, created_at, updated_at
		`
		if err := tx.QueryRowxContext(ctx, query, ing.SupplierID, ing.Name, ing.Category, ing.Unit).
			Scan(&ing.ID, &ing.CreatedAt, &ing.UpdatedAt); err != nil {
			return fmt.Errorf("failed to insert ingredient: %w", err)
		}

		if err := appendPriceHistory(ctx, tx, ing.ID, price); err != nil {
			return err
		}
		ing.CurrentPrice = price
		return nil
	})
}

func (r *catalogRepository) UpdateIngredient(ctx context.Context, ing *domain.Ingredient, newPrice *decimal.Decimal) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE ingredients
			SET supplier_id = $2, name = $3, category = $4, unit = $5, updated_at = NOW()
			WHERE id = $1
		`
		res, err := tx.ExecContext(ctx, query, ing.ID, ing.SupplierID, ing.Name, ing.Category, ing.Unit)
		if err != nil {
			return fmt.Errorf("failed to update ingredient: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}

		if newPrice != nil {
			if err := appendPriceHistory(ctx, tx, ing.ID, *newPrice); err != nil {
				return err
			}
			ing.CurrentPrice = *newPrice
		}
		return nil
	})
}

// appendPriceHistory writes one immutable price-history entry. Entries are
// never updated or deleted by normal flows.
func appendPriceHistory(ctx context.Context, tx *sqlx.Tx, ingredientID int64, price decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO price_history (ingredient_id, price, log_date) VALUES ($1, $2, NOW())`,
		ingredientID, price)
	if err != nil {
		return fmt.Errorf("failed to append price history: %w", err)
	}
	return nil
}

func (r *catalogRepository) GetIngredient(ctx context.Context, id int64) (*domain.Ingredient, error) {
	var ing domain.Ingredient
	query := fmt.Sprintf(`
		SELECT i.*, %s AS current_price
		FROM ingredients i
		WHERE i.id = $1
	`, currentPriceExpr)
	err := r.db.GetContext(ctx, &ing, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ingredient: %w", err)
	}
	return &ing, nil
}

func (r *catalogRepository) ListIngredients(ctx context.Context) ([]*domain.Ingredient, error) {
	ingredients := make([]*domain.Ingredient, 0)
	query := fmt.Sprintf(`
		SELECT i.*, %s AS current_price
		FROM ingredients i
		ORDER BY i.name
	`, currentPriceExpr)
	if err := r.db.SelectContext(ctx, &ingredients, query); err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	return ingredients, nil
}

func (r *catalogRepository) PriceHistory(ctx context.Context, ingredientID int64, limit int) ([]domain.PriceHistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	entries := make([]domain.PriceHistoryEntry, 0)
	query := `
		SELECT * FROM price_history
		WHERE ingredient_id = $1
		ORDER BY log_date DESC, id DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &entries, query, ingredientID, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch price history: %w", err)
	}
	return entries, nil
}

func (r *catalogRepository) CreateRecipe(ctx context.Context, recipe *domain.Recipe) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO recipes (name, selling_price, target_margin, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())
			RETURNING id, created_at, updated_at
		`
		if err := tx.QueryRowxContext(ctx, query, recipe.Name, recipe.SellingPrice, recipe.TargetMargin).
			Scan(&recipe.ID, &recipe.CreatedAt, &recipe.UpdatedAt); err != nil {
			return fmt.Errorf("failed to insert recipe: %w", err)
		}
		return replaceRecipeLines(ctx, tx, recipe.ID, recipe.Ingredients)
	})
}

func (r *catalogRepository) UpdateRecipe(ctx context.Context, recipe *domain.Recipe) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE recipes
			SET name = $2, selling_price = $3, target_margin = $4, updated_at = NOW()
			WHERE id = $1
		`
		res, err := tx.ExecContext(ctx, query, recipe.ID, recipe.Name, recipe.SellingPrice, recipe.TargetMargin)
		if err != nil {
			return fmt.Errorf("failed to update recipe: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		return replaceRecipeLines(ctx, tx, recipe.ID, recipe.Ingredients)
	})
}

func replaceRecipeLines(ctx context.Context, tx *sqlx.Tx, recipeID int64, lines []domain.RecipeIngredient) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_ingredients WHERE recipe_id = $1`, recipeID); err != nil {
		return fmt.Errorf("failed to clear recipe lines: %w", err)
	}
	for pos, line := range lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recipe_ingredients (recipe_id, ingredient_id, quantity, position)
			VALUES ($1, $2, $3, $4)
		`, recipeID, line.IngredientID, line.Quantity, pos)
		if err != nil {
			return fmt.Errorf("failed to insert recipe line: %w", err)
		}
	}
	return nil
}

func (r *catalogRepository) GetRecipe(ctx context.Context, id int64) (*domain.Recipe, error) {
	var recipe domain.Recipe
	err := r.db.GetContext(ctx, &recipe, `SELECT * FROM recipes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recipe: %w", err)
	}
	if err := r.loadRecipeLines(ctx, &recipe); err != nil {
		return nil, err
	}
	return &recipe, nil
}

func (r *catalogRepository) ListRecipes(ctx context.Context) ([]*domain.Recipe, error) {
	recipes := make([]*domain.Recipe, 0)
	if err := r.db.SelectContext(ctx, &recipes, `SELECT * FROM recipes ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	for _, recipe := range recipes {
		if err := r.loadRecipeLines(ctx, recipe); err != nil {
			return nil, err
		}
	}
	return recipes, nil
}

func (r *catalogRepository) RecipesUsingIngredient(ctx context.Context, ingredientID int64) ([]*domain.Recipe, error) {
	recipes := make([]*domain.Recipe, 0)
	query := `
		SELECT r.* FROM recipes r
		JOIN recipe_ingredients ri ON ri.recipe_id = r.id
		WHERE ri.ingredient_id = $1
		ORDER BY r.name
	`
	if err := r.db.SelectContext(ctx, &recipes, query, ingredientID); err != nil {
		return nil, fmt.Errorf("failed to list recipes for ingredient: %w", err)
	}
	for _, recipe := range recipes {
		if err := r.loadRecipeLines(ctx, recipe); err != nil {
			return nil, err
		}
	}
	return recipes, nil
}

func (r *catalogRepository) loadRecipeLines(ctx context.Context, recipe *domain.Recipe) error {
	lines := make([]domain.RecipeIngredient, 0)
	query := fmt.Sprintf(`
		SELECT ri.ingredient_id,
			i.name AS ingredient_name,
			i.unit,
			ri.quantity,
			%s AS current_price
		FROM recipe_ingredients ri
		JOIN ingredients i ON i.id = ri.ingredient_id
		WHERE ri.recipe_id = $1
		ORDER BY ri.position
	`, currentPriceExpr)
	if err := r.db.SelectContext(ctx, &lines, query, recipe.ID); err != nil {
		return fmt.Errorf("failed to load recipe lines: %w", err)
	}
	recipe.Ingredients = lines
	return nil
}

func (r *catalogRepository) SupplierActivity(ctx context.Context, supplierID int64) (*repository.SupplierActivity, error) {
	var activity repository.SupplierActivity
	query := `
		SELECT
			(SELECT COUNT(*) FROM invoices WHERE supplier_id = $1) AS invoice_count,
			(SELECT COALESCE(SUM(total), 0) FROM invoices WHERE supplier_id = $1) AS total_spend,
			(SELECT COUNT(*) FROM ingredients WHERE supplier_id = $1) AS ingredient_count
	`
	if err := r.db.GetContext(ctx, &activity, query, supplierID); err != nil {
		return nil, fmt.Errorf("failed to fetch supplier activity: %w", err)
	}
	return &activity, nil
}
