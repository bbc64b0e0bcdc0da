// Package costing computes recipe cost-of-goods from ingredient price
// history. All functions are pure over the loaded associations; prices change
// independently of recipe records, so cost is always recomputed on demand.
package costing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// RecipeLine is an ingredient line as loaded for costing: the recipe-specific
// quantity and the ingredient's current price. An ingredient with no price
// history carries a zero price and contributes nothing.
type RecipeLine struct {
	IngredientID int64
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
}

// ComputeCost returns the unit cost-of-goods for a recipe:
// Σ(quantity × current ingredient price).
func ComputeCost(lines []RecipeLine) decimal.Decimal {
	cost := decimal.Zero
	for _, line := range lines {
		cost = cost.Add(line.Quantity.Mul(line.UnitPrice))
	}
	return cost
}

// ComputeMargin returns the gross margin percentage for a selling price and
// cost: (selling − cost) / selling × 100, or zero when the selling price is
// not positive.
func ComputeMargin(sellingPrice, cost decimal.Decimal) decimal.Decimal {
	if sellingPrice.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return sellingPrice.Sub(cost).Div(sellingPrice).Mul(hundred)
}

// RecipeImpact describes how much of one recipe's cost an ingredient carries.
type RecipeImpact struct {
	RecipeID   int64
	RecipeName string
	// Percentage of the recipe's total cost attributable to the ingredient,
	// rounded to one decimal place.
	Percentage decimal.Decimal
}

// ImpactInput is one recipe that uses the ingredient under analysis.
type ImpactInput struct {
	RecipeID       int64
	RecipeName     string
	IngredientCost decimal.Decimal
	RecipeCost     decimal.Decimal
}

// MostImpactedRecipe picks the recipe where the ingredient carries the
// largest share of total cost. A recipe with non-positive cost contributes a
// zero ratio rather than an error. Returns false when no recipes use the
// ingredient.
func MostImpactedRecipe(inputs []ImpactInput) (RecipeImpact, bool) {
	if len(inputs) == 0 {
		return RecipeImpact{}, false
	}

	best := inputs[0]
	bestRatio := impactRatio(best)
	for _, in := range inputs[1:] {
		if ratio := impactRatio(in); ratio.GreaterThan(bestRatio) {
			best = in
			bestRatio = ratio
		}
	}

	return RecipeImpact{
		RecipeID:   best.RecipeID,
		RecipeName: best.RecipeName,
		Percentage: bestRatio.Mul(hundred).Round(1),
	}, true
}

func impactRatio(in ImpactInput) decimal.Decimal {
	if in.RecipeCost.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return in.IngredientCost.Div(in.RecipeCost)
}
