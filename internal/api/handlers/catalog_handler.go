package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/platewise/backoffice/internal/domain"
	"github.com/platewise/backoffice/internal/service"
)

type CatalogHandler struct {
	catalog *service.CatalogService
}

func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) CreateSupplier(c *gin.Context) {
	var supplier domain.Supplier
	if err := c.ShouldBindJSON(&supplier); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if supplier.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if err := h.catalog.CreateSupplier(c.Request.Context(), &supplier); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, supplier)
}

func (h *CatalogHandler) GetSupplier(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	supplier, err := h.catalog.GetSupplier(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, supplier)
}

func (h *CatalogHandler) ListSuppliers(c *gin.Context) {
	suppliers, err := h.catalog.ListSuppliers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, suppliers)
}

type ingredientRequest struct {
	SupplierID int64            `json:"supplier_id"`
	Name       string           `json:"name"`
	Category   string           `json:"category"`
	Unit       string           `json:"unit"`
	Price      *decimal.Decimal `json:"price"`
}

// CreateIngredient creates the ingredient and its first price-history entry.
func (h *CatalogHandler) CreateIngredient(c *gin.Context) {
	var req ingredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Name == "" || req.Price == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and price are required"})
		return
	}

	ing := &domain.Ingredient{
		SupplierID: req.SupplierID,
		Name:       req.Name,
		Category:   req.Category,
		Unit:       req.Unit,
	}
	if err := h.catalog.CreateIngredient(c.Request.Context(), ing, *req.Price); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ing)
}

// UpdateIngredient updates descriptive fields; a price in the request body
// appends a new price-history entry rather than overwriting anything.
func (h *CatalogHandler) UpdateIngredient(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req ingredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ing := &domain.Ingredient{
		ID:         id,
		SupplierID: req.SupplierID,
		Name:       req.Name,
		Category:   req.Category,
		Unit:       req.Unit,
	}
	if err := h.catalog.UpdateIngredient(c.Request.Context(), ing, req.Price); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ing)
}

func (h *CatalogHandler) GetIngredient(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ing, err := h.catalog.GetIngredient(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ing)
}

func (h *CatalogHandler) ListIngredients(c *gin.Context) {
	ingredients, err := h.catalog.ListIngredients(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ingredients)
}

func (h *CatalogHandler) PriceHistory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, err := h.catalog.PriceHistory(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

type recipeRequest struct {
	Name         string           `json:"name"`
	SellingPrice decimal.Decimal  `json:"selling_price"`
	TargetMargin *decimal.Decimal `json:"target_margin"`
	Ingredients  []struct {
		IngredientID int64           `json:"ingredient_id"`
		Quantity     decimal.Decimal `json:"quantity"`
	} `json:"ingredients"`
}

func (req *recipeRequest) toRecipe(id int64) *domain.Recipe {
	recipe := &domain.Recipe{
		ID:           id,
		Name:         req.Name,
		SellingPrice: req.SellingPrice,
		TargetMargin: req.TargetMargin,
	}
	for _, line := range req.Ingredients {
		recipe.Ingredients = append(recipe.Ingredients, domain.RecipeIngredient{
			IngredientID: line.IngredientID,
			Quantity:     line.Quantity,
		})
	}
	return recipe
}

func (h *CatalogHandler) CreateRecipe(c *gin.Context) {
	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	recipe := req.toRecipe(0)
	if err := h.catalog.CreateRecipe(c.Request.Context(), recipe); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

func (h *CatalogHandler) UpdateRecipe(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	recipe := req.toRecipe(id)
	if err := h.catalog.UpdateRecipe(c.Request.Context(), recipe); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// GetRecipe returns the recipe with cost and margin derived from the
// current ingredient price snapshot.
func (h *CatalogHandler) GetRecipe(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	recipe, err := h.catalog.GetRecipe(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *CatalogHandler) ListRecipes(c *gin.Context) {
	recipes, err := h.catalog.ListRecipes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipes)
}
