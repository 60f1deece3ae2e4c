package handlers

import (
	"net/http"
	"strings"

	"github.com/blogforge/blogforge/internal/models"
	"github.com/blogforge/blogforge/internal/security"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// APIKeyHandler handles the authenticated user's API key endpoints.
type APIKeyHandler struct {
	db *gorm.DB
}

// NewAPIKeyHandler constructs an APIKeyHandler.
func NewAPIKeyHandler(db *gorm.DB) *APIKeyHandler {
	return &APIKeyHandler{db: db}
}

type createAPIKeyRequest struct {
	Name string `json:"name"`
}

// Create mints a new API key for the authenticated user. The token is
// returned once, in full, on creation.
func (h *APIKeyHandler) Create(c *gin.Context) {
	user := getUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body createAPIKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		body.Name = "default"
	}

	token, errToken := security.GenerateAPIKey()
	if errToken != nil {
		log.WithError(errToken).Error("generate api key failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate key failed"})
		return
	}

	key := models.APIKey{
		UserID: user.ID,
		Name:   body.Name,
		Token:  token,
		Active: true,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&key).Error; errCreate != nil {
		log.WithError(errCreate).Error("create api key failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create key failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         key.ID,
		"name":       key.Name,
		"token":      key.Token,
		"created_at": key.CreatedAt,
	})
}

// List returns the user's API keys with masked tokens.
func (h *APIKeyHandler) List(c *gin.Context) {
	user := getUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var keys []models.APIKey
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", user.ID).Order("id ASC").Find(&keys).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query keys failed"})
		return
	}

	items := make([]gin.H, 0, len(keys))
	for _, key := range keys {
		items = append(items, gin.H{
			"id":         key.ID,
			"name":       key.Name,
			"token":      maskToken(key.Token),
			"active":     key.Active,
			"created_at": key.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": items})
}

// Revoke deactivates one of the user's API keys.
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	user := getUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Model(&models.APIKey{}).
		Where("id = ? AND user_id = ?", c.Param("id"), user.ID).
		Update("active", false)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke key failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
