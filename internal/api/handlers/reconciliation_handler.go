package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/platewise/backoffice/internal/service"
)

type ReconciliationHandler struct {
	recs *service.ReconciliationService
}

func NewReconciliationHandler(recs *service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{recs: recs}
}

// GetByDay returns the active reconciliation record for a branch and day,
// creating a fresh pending one when the previous record was confirmed.
func (h *ReconciliationHandler) GetByDay(c *gin.Context) {
	branch, date, ok := parseBranchAndDate(c, c.Query("branch"), c.Query("date"))
	if !ok {
		return
	}

	rec, err := h.recs.GetOrCreate(c.Request.Context(), branch, date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *ReconciliationHandler) List(c *gin.Context) {
	branch := strings.TrimSpace(c.Query("branch"))
	if branch == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "branch is required"})
		return
	}

	recs, err := h.recs.List(c.Request.Context(), branch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

// UploadReceipt accepts the day's Z-read image and runs receipt extraction.
func (h *ReconciliationHandler) UploadReceipt(c *gin.Context) {
	branch, date, ok := parseBranchAndDate(c, c.PostForm("branch"), c.PostForm("date"))
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error().Err(err).Str("filename", fileHeader.Filename).Msg("failed to read uploaded receipt")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read uploaded file"})
		return
	}

	rec, err := h.recs.UploadReceipt(c.Request.Context(), branch, date, fileHeader.Filename, data, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type breakdownRequest struct {
	Items []service.BreakdownInput `json:"items" binding:"required"`
}

// UpdateBreakdown replaces the day's recipe-level sales breakdown.
func (h *ReconciliationHandler) UpdateBreakdown(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req breakdownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	rec, err := h.recs.UpdateBreakdown(c.Request.Context(), id, req.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Confirm closes the record as reconciled regardless of variance.
func (h *ReconciliationHandler) Confirm(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	rec, err := h.recs.ConfirmAndClose(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Flag marks the record for review.
func (h *ReconciliationHandler) Flag(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	rec, err := h.recs.FlagForReview(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func parseBranchAndDate(c *gin.Context, branchRaw, dateRaw string) (string, time.Time, bool) {
	branch := strings.TrimSpace(branchRaw)
	if branch == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "branch is required"})
		return "", time.Time{}, false
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(dateRaw))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return "", time.Time{}, false
	}

	return branch, date, true
}
