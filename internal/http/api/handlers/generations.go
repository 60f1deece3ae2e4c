package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/blogforge/blogforge/internal/archive"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GenerationHandler handles the user's generation history endpoints.
type GenerationHandler struct {
	archive *archive.Archive
}

// NewGenerationHandler constructs a GenerationHandler.
func NewGenerationHandler(a *archive.Archive) *GenerationHandler {
	return &GenerationHandler{archive: a}
}

// List returns the user's generations, newest first.
func (h *GenerationHandler) List(c *gin.Context) {
	user := getUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	rows, errList := h.archive.ListGenerations(user.ID, limit)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query generations failed"})
		return
	}

	items := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		items = append(items, gin.H{
			"id":            row.ID,
			"title":         row.Title,
			"model":         row.Model,
			"input_tokens":  row.InputTokens,
			"output_tokens": row.OutputTokens,
			"image_count":   row.ImageCount,
			"cost_credits":  row.CostCredits,
			"created_at":    row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"generations": items})
}

// Get returns one generation with its full document.
func (h *GenerationHandler) Get(c *gin.Context) {
	user := getUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	gen, errGet := h.archive.GetGeneration(user.ID, id)
	if errGet != nil {
		if errors.Is(errGet, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query generation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            gen.ID,
		"title":         gen.Title,
		"article":       gen.Document,
		"model":         gen.Model,
		"input_tokens":  gen.InputTokens,
		"output_tokens": gen.OutputTokens,
		"image_count":   gen.ImageCount,
		"cost_credits":  gen.CostCredits,
		"created_at":    gen.CreatedAt,
	})
}

// Titles returns the user's novelty title list, oldest first.
func (h *GenerationHandler) Titles(c *gin.Context) {
	user := getUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	titles, errTitles := h.archive.Titles(user.ID)
	if errTitles != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query titles failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"titles": titles})
}
