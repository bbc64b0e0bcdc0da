package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platewise/backoffice/internal/domain"
	"github.com/platewise/backoffice/internal/service"
)

type InsightHandler struct {
	insights *service.InsightService
}

func NewInsightHandler(insights *service.InsightService) *InsightHandler {
	return &InsightHandler{insights: insights}
}

// GenerateAll regenerates insights for every supplier, recipe and
// ingredient. Per-entity failures are reported but only a run with zero
// successes fails overall.
func (h *InsightHandler) GenerateAll(c *gin.Context) {
	report, err := h.insights.GenerateAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *InsightHandler) List(c *gin.Context) {
	insights, err := h.insights.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, insights)
}

// CreateKpi promotes an insight to a tracked KPI. A second KPI for the same
// insight is rejected.
func (h *InsightHandler) CreateKpi(c *gin.Context) {
	var kpi domain.Kpi
	if err := c.ShouldBindJSON(&kpi); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if kpi.AiInsightID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ai_insight_id is required"})
		return
	}

	if err := h.insights.CreateKpi(c.Request.Context(), &kpi); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, kpi)
}

// GetKpi returns the KPI tracked against one insight.
func (h *InsightHandler) GetKpi(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	kpi, err := h.insights.KpiForInsight(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, kpi)
}

func (h *InsightHandler) ListKpis(c *gin.Context) {
	kpis, err := h.insights.ListKpis(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, kpis)
}
