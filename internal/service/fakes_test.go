package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/platewise/backoffice/internal/domain"
	"github.com/platewise/backoffice/internal/repository"
	"github.com/platewise/backoffice/internal/storage"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// fakeInvoiceRepo mirrors the transactional guarantees of the postgres
// implementation over an in-memory map.
type fakeInvoiceRepo struct {
	nextID   int64
	invoices map[int64]*domain.Invoice
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: make(map[int64]*domain.Invoice)}
}

func (r *fakeInvoiceRepo) Create(_ context.Context, inv *domain.Invoice) error {
	r.nextID++
	inv.ID = r.nextID
	stored := *inv
	r.invoices[inv.ID] = &stored
	return nil
}

func (r *fakeInvoiceRepo) Get(_ context.Context, id int64) (*domain.Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

func (r *fakeInvoiceRepo) List(_ context.Context) ([]*domain.Invoice, error) {
	out := make([]*domain.Invoice, 0, len(r.invoices))
	for _, inv := range r.invoices {
		copied := *inv
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeInvoiceRepo) ListBySupplier(ctx context.Context, supplierID int64) ([]*domain.Invoice, error) {
	all, _ := r.List(ctx)
	out := make([]*domain.Invoice, 0)
	for _, inv := range all {
		if inv.SupplierID == supplierID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) ClaimProcessing(_ context.Context, id int64) (*domain.Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if inv.Status == domain.InvoiceProcessing {
		return nil, domain.ErrAlreadyProcessing
	}
	if !inv.Status.CanStartProcessing() {
		return nil, domain.ErrInvalidTransition
	}
	inv.Status = domain.InvoiceProcessing
	copied := *inv
	return &copied, nil
}

func (r *fakeInvoiceRepo) SetStatus(_ context.Context, id int64, status domain.InvoiceStatus) error {
	inv, ok := r.invoices[id]
	if !ok {
		return domain.ErrNotFound
	}
	inv.Status = status
	return nil
}

func (r *fakeInvoiceRepo) SaveExtractionResult(_ context.Context, id int64, status domain.InvoiceStatus, invoiceNumber string, invoiceDate, dueDate *time.Time, total decimal.Decimal, payload *domain.ExtractionPayload) error {
	inv, ok := r.invoices[id]
	if !ok {
		return domain.ErrNotFound
	}
	inv.Status = status
	inv.InvoiceNumber = invoiceNumber
	inv.InvoiceDate = invoiceDate
	inv.DueDate = dueDate
	inv.Total = total
	inv.ExtractedData = payload
	return nil
}

func (r *fakeInvoiceRepo) SaveValidation(_ context.Context, id int64, status domain.InvoiceStatus, total decimal.Decimal, payload *domain.ExtractionPayload) error {
	inv, ok := r.invoices[id]
	if !ok {
		return domain.ErrNotFound
	}
	inv.Status = status
	inv.Total = total
	inv.ExtractedData = payload
	return nil
}

type fakeCatalogRepo struct {
	suppliers   map[int64]*domain.Supplier
	ingredients map[int64]*domain.Ingredient
	history     map[int64][]domain.PriceHistoryEntry
	recipes     map[int64]*domain.Recipe
	activity    map[int64]*repository.SupplierActivity
}

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		suppliers:   make(map[int64]*domain.Supplier),
		ingredients: make(map[int64]*domain.Ingredient),
		history:     make(map[int64][]domain.PriceHistoryEntry),
		recipes:     make(map[int64]*domain.Recipe),
		activity:    make(map[int64]*repository.SupplierActivity),
	}
}

func (r *fakeCatalogRepo) CreateSupplier(_ context.Context, s *domain.Supplier) error {
	if s.ID == 0 {
		s.ID = int64(len(r.suppliers) + 1)
	}
	r.suppliers[s.ID] = s
	return nil
}

func (r *fakeCatalogRepo) GetSupplier(_ context.Context, id int64) (*domain.Supplier, error) {
	s, ok := r.suppliers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (r *fakeCatalogRepo) ListSuppliers(_ context.Context) ([]*domain.Supplier, error) {
	out := make([]*domain.Supplier, 0, len(r.suppliers))
	for _, s := range r.suppliers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeCatalogRepo) CreateIngredient(_ context.Context, ing *domain.Ingredient, price decimal.Decimal) error {
	if ing.ID == 0 {
		ing.ID = int64(len(r.ingredients) + 1)
	}
	ing.CurrentPrice = price
	r.ingredients[ing.ID] = ing
	r.history[ing.ID] = append(r.history[ing.ID], domain.PriceHistoryEntry{
		IngredientID: ing.ID, Price: price, LogDate: time.Now(),
	})
	return nil
}

func (r *fakeCatalogRepo) UpdateIngredient(_ context.Context, ing *domain.Ingredient, newPrice *decimal.Decimal) error {
	stored, ok := r.ingredients[ing.ID]
	if !ok {
		return domain.ErrNotFound
	}
	*stored = *ing
	if newPrice != nil {
		stored.CurrentPrice = *newPrice
		r.history[ing.ID] = append(r.history[ing.ID], domain.PriceHistoryEntry{
			IngredientID: ing.ID, Price: *newPrice, LogDate: time.Now(),
		})
	}
	return nil
}

func (r *fakeCatalogRepo) GetIngredient(_ context.Context, id int64) (*domain.Ingredient, error) {
	ing, ok := r.ingredients[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ing, nil
}

func (r *fakeCatalogRepo) ListIngredients(_ context.Context) ([]*domain.Ingredient, error) {
	out := make([]*domain.Ingredient, 0, len(r.ingredients))
	for _, ing := range r.ingredients {
		out = append(out, ing)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeCatalogRepo) PriceHistory(_ context.Context, ingredientID int64, limit int) ([]domain.PriceHistoryEntry, error) {
	entries := r.history[ingredientID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func (r *fakeCatalogRepo) CreateRecipe(_ context.Context, recipe *domain.Recipe) error {
	if recipe.ID == 0 {
		recipe.ID = int64(len(r.recipes) + 1)
	}
	r.recipes[recipe.ID] = recipe
	return nil
}

func (r *fakeCatalogRepo) UpdateRecipe(_ context.Context, recipe *domain.Recipe) error {
	if _, ok := r.recipes[recipe.ID]; !ok {
		return domain.ErrNotFound
	}
	r.recipes[recipe.ID] = recipe
	return nil
}

func (r *fakeCatalogRepo) GetRecipe(_ context.Context, id int64) (*domain.Recipe, error) {
	recipe, ok := r.recipes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *recipe
	return &copied, nil
}

func (r *fakeCatalogRepo) ListRecipes(_ context.Context) ([]*domain.Recipe, error) {
	out := make([]*domain.Recipe, 0, len(r.recipes))
	for _, recipe := range r.recipes {
		copied := *recipe
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeCatalogRepo) RecipesUsingIngredient(ctx context.Context, ingredientID int64) ([]*domain.Recipe, error) {
	all, _ := r.ListRecipes(ctx)
	out := make([]*domain.Recipe, 0)
	for _, recipe := range all {
		for _, line := range recipe.Ingredients {
			if line.IngredientID == ingredientID {
				out = append(out, recipe)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeCatalogRepo) SupplierActivity(_ context.Context, supplierID int64) (*repository.SupplierActivity, error) {
	if activity, ok := r.activity[supplierID]; ok {
		return activity, nil
	}
	return &repository.SupplierActivity{}, nil
}

type fakeReconciliationRepo struct {
	nextID  int64
	records map[int64]*domain.SalesReconciliation
}

func newFakeReconciliationRepo() *fakeReconciliationRepo {
	return &fakeReconciliationRepo{records: make(map[int64]*domain.SalesReconciliation)}
}

func (r *fakeReconciliationRepo) GetOrCreateActive(_ context.Context, branch string, date time.Time) (*domain.SalesReconciliation, error) {
	var latest *domain.SalesReconciliation
	for _, rec := range r.records {
		if rec.Branch != branch || !rec.Date.Equal(date) || rec.Status.Terminal() {
			continue
		}
		if latest == nil || rec.ID > latest.ID {
			latest = rec
		}
	}
	if latest != nil {
		copied := *latest
		return &copied, nil
	}

	r.nextID++
	rec := &domain.SalesReconciliation{
		ID:              r.nextID,
		Branch:          branch,
		Date:            date,
		Status:          domain.ReconciliationPending,
		RecipeBreakdown: []domain.BreakdownItem{},
	}
	r.records[rec.ID] = rec
	copied := *rec
	return &copied, nil
}

func (r *fakeReconciliationRepo) Get(_ context.Context, id int64) (*domain.SalesReconciliation, error) {
	rec, ok := r.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (r *fakeReconciliationRepo) List(_ context.Context, branch string) ([]*domain.SalesReconciliation, error) {
	out := make([]*domain.SalesReconciliation, 0)
	for _, rec := range r.records {
		if rec.Branch == branch {
			copied := *rec
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeReconciliationRepo) Save(_ context.Context, rec *domain.SalesReconciliation) error {
	if _, ok := r.records[rec.ID]; !ok {
		return domain.ErrNotFound
	}
	copied := *rec
	r.records[rec.ID] = &copied
	return nil
}

type fakeInsightRepo struct {
	nextID   int64
	insights map[int64]*domain.AiInsight
	kpis     map[int64]*domain.Kpi
}

func newFakeInsightRepo() *fakeInsightRepo {
	return &fakeInsightRepo{
		insights: make(map[int64]*domain.AiInsight),
		kpis:     make(map[int64]*domain.Kpi),
	}
}

func (r *fakeInsightRepo) ReplaceForKind(_ context.Context, kind domain.InsightEntityKind, batch []*domain.AiInsight) error {
	for id, insight := range r.insights {
		if insight.EntityKind == kind {
			delete(r.insights, id)
		}
	}
	for _, insight := range batch {
		r.nextID++
		insight.ID = r.nextID
		r.insights[insight.ID] = insight
	}
	return nil
}

func (r *fakeInsightRepo) ListInsights(_ context.Context) ([]*domain.AiInsight, error) {
	out := make([]*domain.AiInsight, 0, len(r.insights))
	for _, insight := range r.insights {
		out = append(out, insight)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeInsightRepo) GetInsight(_ context.Context, id int64) (*domain.AiInsight, error) {
	insight, ok := r.insights[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return insight, nil
}

func (r *fakeInsightRepo) CreateKpi(_ context.Context, kpi *domain.Kpi) error {
	for _, existing := range r.kpis {
		if existing.AiInsightID == kpi.AiInsightID {
			return domain.ErrKpiExists
		}
	}
	kpi.ID = int64(len(r.kpis) + 1)
	r.kpis[kpi.ID] = kpi
	return nil
}

func (r *fakeInsightRepo) GetKpiByInsight(_ context.Context, insightID int64) (*domain.Kpi, error) {
	for _, kpi := range r.kpis {
		if kpi.AiInsightID == insightID {
			return kpi, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeInsightRepo) ListKpis(_ context.Context) ([]*domain.Kpi, error) {
	out := make([]*domain.Kpi, 0, len(r.kpis))
	for _, kpi := range r.kpis {
		out = append(out, kpi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeExtractor substitutes the AI collaborator with canned behavior per
// method; unset methods fail loudly.
type fakeExtractor struct {
	invoiceFn   func(ctx context.Context, image []byte, mime string) (*domain.ExtractionPayload, error)
	receiptFn   func(ctx context.Context, image []byte, mime string) (*domain.ReceiptExtraction, error)
	summarizeFn func(ctx context.Context, prompt string) (*domain.InsightData, error)
}

func (f *fakeExtractor) ExtractInvoice(ctx context.Context, image []byte, mime string) (*domain.ExtractionPayload, error) {
	if f.invoiceFn == nil {
		return nil, errors.New("unexpected ExtractInvoice call")
	}
	return f.invoiceFn(ctx, image, mime)
}

func (f *fakeExtractor) ExtractReceipt(ctx context.Context, image []byte, mime string) (*domain.ReceiptExtraction, error) {
	if f.receiptFn == nil {
		return nil, errors.New("unexpected ExtractReceipt call")
	}
	return f.receiptFn(ctx, image, mime)
}

func (f *fakeExtractor) SummarizeEntity(ctx context.Context, prompt string) (*domain.InsightData, error) {
	if f.summarizeFn == nil {
		return nil, errors.New("unexpected SummarizeEntity call")
	}
	return f.summarizeFn(ctx, prompt)
}

type fakeStorage struct {
	objects map[string]*storage.Object
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string]*storage.Object)}
}

func (s *fakeStorage) Put(_ context.Context, key string, data []byte, mime string) error {
	s.objects[key] = &storage.Object{Data: data, Mime: mime}
	return nil
}

func (s *fakeStorage) Get(_ context.Context, key string) (*storage.Object, error) {
	obj, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return obj, nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

// fakeCostProvider serves fixed unit costs keyed by recipe ID.
type fakeCostProvider struct {
	recipes map[int64]*domain.Recipe
	costs   map[int64]decimal.Decimal
}

func (f *fakeCostProvider) RecipeUnitCogs(_ context.Context, recipeID int64) (*domain.Recipe, decimal.Decimal, error) {
	recipe, ok := f.recipes[recipeID]
	if !ok {
		return nil, decimal.Zero, domain.ErrNotFound
	}
	return recipe, f.costs[recipeID], nil
}
