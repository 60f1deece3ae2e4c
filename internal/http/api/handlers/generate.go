package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/blogforge/blogforge/internal/identity"
	"github.com/blogforge/blogforge/internal/ledger"
	"github.com/blogforge/blogforge/internal/metrics"
	"github.com/blogforge/blogforge/internal/orchestrator"
	"github.com/blogforge/blogforge/internal/ratelimit"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GenerateHandler handles the article generation endpoint. The route does
// its own credential resolution so callers can authenticate with either a
// session token or an API key carried in the body.
type GenerateHandler struct {
	db           *gorm.DB
	resolver     *identity.Resolver
	orchestrator *orchestrator.Orchestrator
	limiter      *ratelimit.Manager
	defaultLimit int
}

// NewGenerateHandler constructs a GenerateHandler.
func NewGenerateHandler(db *gorm.DB, resolver *identity.Resolver, orch *orchestrator.Orchestrator, limiter *ratelimit.Manager, defaultLimit int) *GenerateHandler {
	return &GenerateHandler{
		db:           db,
		resolver:     resolver,
		orchestrator: orch,
		limiter:      limiter,
		defaultLimit: defaultLimit,
	}
}

type generateRequest struct {
	Description   string `json:"description"`
	MaxTokens     int    `json:"max_tokens"`
	Model         string `json:"model"`
	IncludeImages bool   `json:"include_images"`
	ImageCount    int    `json:"image_count"`
	APIKey        string `json:"api_key"`
}

// Generate produces one article for the caller.
func (h *GenerateHandler) Generate(c *gin.Context) {
	var body generateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	apiKey := strings.TrimSpace(body.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(c.GetHeader("X-API-Key"))
	}
	user, errResolve := h.resolver.Resolve(c.Request.Context(), bearerToken(c), apiKey)
	if errResolve != nil {
		status := http.StatusUnauthorized
		if errors.Is(errResolve, identity.ErrInvalidCredential) {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": "unauthorized"})
		return
	}

	limit, errLimit := ratelimit.ResolveLimit(c.Request.Context(), h.db, user.ID, h.defaultLimit)
	if errLimit != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve rate limit failed"})
		return
	}
	result, errAllow := h.limiter.Allow(c.Request.Context(), ratelimit.KeyForUser(user.ID), limit)
	if errAllow != nil {
		log.WithError(errAllow).Warn("rate limit check failed, allowing request")
	} else if !result.Allowed {
		metrics.RateLimitedTotal.Inc()
		c.Header("Retry-After", "1")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	// The reservation must be reconciled even if the caller disconnects, so
	// the generation runs on a context detached from the request's cancel.
	genCtx := context.WithoutCancel(c.Request.Context())
	generated, errGenerate := h.orchestrator.Generate(genCtx, user, orchestrator.Request{
		Description:   body.Description,
		MaxTokens:     body.MaxTokens,
		Model:         body.Model,
		IncludeImages: body.IncludeImages,
		ImageCount:    body.ImageCount,
	})
	if errGenerate != nil {
		switch {
		case errors.Is(errGenerate, orchestrator.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": errGenerate.Error()})
		case errors.Is(errGenerate, ledger.ErrInsufficientCredits):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient credits"})
		case errors.Is(errGenerate, orchestrator.ErrUpstreamGeneration):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "generation failed"})
		default:
			log.WithError(errGenerate).WithField("user_id", user.ID).Error("generate request failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"generation_id": generated.GenerationID,
		"article":       generated.Document,
		"title":         generated.Title,
		"total_cost":    generated.TotalCost,
		"model_used":    generated.Model,
		"input_tokens":  generated.InputTokens,
		"output_tokens": generated.OutputTokens,
		"image_count":   generated.ImageCount,
	})
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
