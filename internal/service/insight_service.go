package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/platewise/backoffice/internal/ai"
	"github.com/platewise/backoffice/internal/costing"
	"github.com/platewise/backoffice/internal/domain"
	"github.com/platewise/backoffice/internal/repository"
)

// GenerateReport summarizes one insight batch run.
type GenerateReport struct {
	Generated int      `json:"generated"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// InsightService regenerates AI insights for suppliers, recipes and
// ingredients. Per-entity failures are isolated; one bad entity never aborts
// the batch, and only a run with zero successes reports overall failure.
type InsightService struct {
	catalog    repository.CatalogRepository
	insights   repository.InsightRepository
	summarizer ai.Extractor
}

func NewInsightService(catalog repository.CatalogRepository, insights repository.InsightRepository, summarizer ai.Extractor) *InsightService {
	return &InsightService{
		catalog:    catalog,
		insights:   insights,
		summarizer: summarizer,
	}
}

func (s *InsightService) List(ctx context.Context) ([]*domain.AiInsight, error) {
	return s.insights.ListInsights(ctx)
}

func (s *InsightService) CreateKpi(ctx context.Context, kpi *domain.Kpi) error {
	if _, err := s.insights.GetInsight(ctx, kpi.AiInsightID); err != nil {
		return err
	}
	return s.insights.CreateKpi(ctx, kpi)
}

func (s *InsightService) ListKpis(ctx context.Context) ([]*domain.Kpi, error) {
	return s.insights.ListKpis(ctx)
}

// KpiForInsight returns the KPI tracked against an insight, or
// domain.ErrNotFound when the insight has not been promoted.
func (s *InsightService) KpiForInsight(ctx context.Context, insightID int64) (*domain.Kpi, error) {
	if _, err := s.insights.GetInsight(ctx, insightID); err != nil {
		return nil, err
	}
	return s.insights.GetKpiByInsight(ctx, insightID)
}

// GenerateAll rebuilds the insight set for every entity kind. Entities with
// nothing to analyze are skipped without counting as failures.
func (s *InsightService) GenerateAll(ctx context.Context) (*GenerateReport, error) {
	report := &GenerateReport{}

	s.generateSuppliers(ctx, report)
	s.generateRecipes(ctx, report)
	s.generateIngredients(ctx, report)

	if report.Generated == 0 {
		msg := "no insights could be generated"
		if len(report.Errors) > 0 {
			msg = fmt.Sprintf("%s: %s", msg, strings.Join(report.Errors, "; "))
		}
		return report, errors.New(msg)
	}
	return report, nil
}

func (s *InsightService) generateSuppliers(ctx context.Context, report *GenerateReport) {
	suppliers, err := s.catalog.ListSuppliers(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list suppliers: %v", err))
		return
	}

	batch := make([]*domain.AiInsight, 0, len(suppliers))
	for _, supplier := range suppliers {
		activity, err := s.catalog.SupplierActivity(ctx, supplier.ID)
		if err != nil {
			s.recordFailure(report, domain.InsightEntitySupplier, supplier.ID, err)
			continue
		}
		if activity.InvoiceCount == 0 && activity.IngredientCount == 0 {
			report.Skipped++
			continue
		}

		prompt := supplierPrompt(supplier, activity)
		data, err := s.summarizer.SummarizeEntity(ctx, prompt)
		if err != nil {
			s.recordFailure(report, domain.InsightEntitySupplier, supplier.ID, err)
			continue
		}

		batch = append(batch, &domain.AiInsight{
			EntityKind: domain.InsightEntitySupplier,
			EntityID:   supplier.ID,
			Data:       *data,
		})
	}

	s.persistBatch(ctx, report, domain.InsightEntitySupplier, batch)
}

func (s *InsightService) generateRecipes(ctx context.Context, report *GenerateReport) {
	recipes, err := s.catalog.ListRecipes(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list recipes: %v", err))
		return
	}

	batch := make([]*domain.AiInsight, 0, len(recipes))
	for _, recipe := range recipes {
		if len(recipe.Ingredients) == 0 {
			report.Skipped++
			continue
		}

		prompt := recipePrompt(recipe)
		data, err := s.summarizer.SummarizeEntity(ctx, prompt)
		if err != nil {
			s.recordFailure(report, domain.InsightEntityRecipe, recipe.ID, err)
			continue
		}

		batch = append(batch, &domain.AiInsight{
			EntityKind: domain.InsightEntityRecipe,
			EntityID:   recipe.ID,
			Data:       *data,
		})
	}

	s.persistBatch(ctx, report, domain.InsightEntityRecipe, batch)
}

func (s *InsightService) generateIngredients(ctx context.Context, report *GenerateReport) {
	ingredients, err := s.catalog.ListIngredients(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list ingredients: %v", err))
		return
	}

	batch := make([]*domain.AiInsight, 0, len(ingredients))
	for _, ing := range ingredients {
		history, err := s.catalog.PriceHistory(ctx, ing.ID, 10)
		if err != nil {
			s.recordFailure(report, domain.InsightEntityIngredient, ing.ID, err)
			continue
		}
		if len(history) == 0 {
			report.Skipped++
			continue
		}

		impact, err := s.mostImpactedRecipe(ctx, ing.ID)
		if err != nil {
			s.recordFailure(report, domain.InsightEntityIngredient, ing.ID, err)
			continue
		}

		prompt := ingredientPrompt(ing, history, impact)
		data, err := s.summarizer.SummarizeEntity(ctx, prompt)
		if err != nil {
			s.recordFailure(report, domain.InsightEntityIngredient, ing.ID, err)
			continue
		}

		batch = append(batch, &domain.AiInsight{
			EntityKind: domain.InsightEntityIngredient,
			EntityID:   ing.ID,
			Data:       *data,
		})
	}

	s.persistBatch(ctx, report, domain.InsightEntityIngredient, batch)
}

// mostImpactedRecipe finds the recipe where the ingredient carries the
// largest share of total cost.
func (s *InsightService) mostImpactedRecipe(ctx context.Context, ingredientID int64) (*costing.RecipeImpact, error) {
	recipes, err := s.catalog.RecipesUsingIngredient(ctx, ingredientID)
	if err != nil {
		return nil, err
	}

	inputs := make([]costing.ImpactInput, 0, len(recipes))
	for _, recipe := range recipes {
		lines := make([]costing.RecipeLine, 0, len(recipe.Ingredients))
		ingredientCost := decimal.Zero
		for _, line := range recipe.Ingredients {
			lines = append(lines, costing.RecipeLine{
				IngredientID: line.IngredientID,
				Quantity:     line.Quantity,
				UnitPrice:    line.CurrentPrice,
			})
			if line.IngredientID == ingredientID {
				ingredientCost = ingredientCost.Add(line.Quantity.Mul(line.CurrentPrice))
			}
		}
		inputs = append(inputs, costing.ImpactInput{
			RecipeID:       recipe.ID,
			RecipeName:     recipe.Name,
			IngredientCost: ingredientCost,
			RecipeCost:     costing.ComputeCost(lines),
		})
	}

	impact, ok := costing.MostImpactedRecipe(inputs)
	if !ok {
		return nil, nil
	}
	return &impact, nil
}

// persistBatch replaces the kind's insights only when the run produced at
// least one; a fully failed kind keeps its previous insights.
func (s *InsightService) persistBatch(ctx context.Context, report *GenerateReport, kind domain.InsightEntityKind, batch []*domain.AiInsight) {
	if len(batch) == 0 {
		return
	}
	if err := s.insights.ReplaceForKind(ctx, kind, batch); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("persist %s insights: %v", kind, err))
		return
	}
	report.Generated += len(batch)
}

func (s *InsightService) recordFailure(report *GenerateReport, kind domain.InsightEntityKind, id int64, err error) {
	log.Error().Err(err).Str("entity_kind", string(kind)).Int64("entity_id", id).Msg("insight generation failed for entity")
	report.Errors = append(report.Errors, fmt.Sprintf("%s %d: %v", kind, id, err))
}

func supplierPrompt(supplier *domain.Supplier, activity *repository.SupplierActivity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this restaurant supplier and produce one business insight.\n\n")
	fmt.Fprintf(&b, "Supplier: %s\n", supplier.Name)
	fmt.Fprintf(&b, "Invoices on file: %d\n", activity.InvoiceCount)
	fmt.Fprintf(&b, "Total spend: %s\n", activity.TotalSpend)
	fmt.Fprintf(&b, "Ingredients supplied: %d\n", activity.IngredientCount)
	return b.String()
}

func recipePrompt(recipe *domain.Recipe) string {
	type ingredientShare struct {
		name string
		cost decimal.Decimal
		pct  decimal.Decimal
	}

	lines := make([]costing.RecipeLine, 0, len(recipe.Ingredients))
	for _, ing := range recipe.Ingredients {
		lines = append(lines, costing.RecipeLine{
			IngredientID: ing.IngredientID,
			Quantity:     ing.Quantity,
			UnitPrice:    ing.CurrentPrice,
		})
	}
	cost := costing.ComputeCost(lines)
	margin := costing.ComputeMargin(recipe.SellingPrice, cost)

	shares := make([]ingredientShare, 0, len(recipe.Ingredients))
	for _, ing := range recipe.Ingredients {
		ingCost := ing.Quantity.Mul(ing.CurrentPrice)
		pct := decimal.Zero
		if cost.GreaterThan(decimal.Zero) {
			pct = ingCost.Div(cost).Mul(decimal.NewFromInt(100)).Round(1)
		}
		shares = append(shares, ingredientShare{name: ing.IngredientName, cost: ingCost, pct: pct})
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].pct.GreaterThan(shares[j].pct) })

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this menu recipe's cost structure and produce one business insight.\n\n")
	fmt.Fprintf(&b, "Recipe: %s\n", recipe.Name)
	fmt.Fprintf(&b, "Selling price: %s\n", recipe.SellingPrice)
	fmt.Fprintf(&b, "Cost of goods: %s\n", cost)
	fmt.Fprintf(&b, "Gross margin: %s%%\n", margin.Round(1))
	if recipe.TargetMargin != nil {
		fmt.Fprintf(&b, "Target margin: %s%%\n", recipe.TargetMargin)
	}
	b.WriteString("Ingredient cost breakdown (largest share first):\n")
	for _, share := range shares {
		fmt.Fprintf(&b, "- %s: %s (%s%% of cost)\n", share.name, share.cost, share.pct)
	}
	return b.String()
}

func ingredientPrompt(ing *domain.Ingredient, history []domain.PriceHistoryEntry, impact *costing.RecipeImpact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this ingredient's price movement and produce one business insight.\n\n")
	fmt.Fprintf(&b, "Ingredient: %s (%s, per %s)\n", ing.Name, ing.Category, ing.Unit)
	b.WriteString("Recent prices (newest first):\n")
	for _, entry := range history {
		fmt.Fprintf(&b, "- %s: %s\n", entry.LogDate.Format("2006-01-02"), entry.Price)
	}
	if impact != nil {
		fmt.Fprintf(&b, "Most cost-impacted recipe: %s (%s%% of its cost)\n", impact.RecipeName, impact.Percentage)
	}
	return b.String()
}
