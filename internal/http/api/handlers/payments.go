package handlers

import (
	"errors"
	"net/http"

	"github.com/blogforge/blogforge/internal/payment"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// PaymentHandler handles the product catalog, checkout and webhook routes.
type PaymentHandler struct {
	bridge *payment.Bridge
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(bridge *payment.Bridge) *PaymentHandler {
	return &PaymentHandler{bridge: bridge}
}

// Products lists purchasable credit packs.
func (h *PaymentHandler) Products(c *gin.Context) {
	products, errList := h.bridge.ListProducts(c.Request.Context())
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query products failed"})
		return
	}
	items := make([]gin.H, 0, len(products))
	for _, product := range products {
		items = append(items, gin.H{
			"id":          product.ID,
			"name":        product.Name,
			"description": product.Description,
			"price_cents": product.PriceCents,
			"currency":    product.Currency,
			"credits":     product.Credits,
		})
	}
	c.JSON(http.StatusOK, gin.H{"products": items})
}

type createCheckoutRequest struct {
	ProductID uint64 `json:"product_id"`
}

// CreateCheckout starts a purchase for the authenticated user.
func (h *PaymentHandler) CreateCheckout(c *gin.Context) {
	user := getUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body createCheckoutRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.ProductID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
		return
	}

	session, errCreate := h.bridge.CreateCheckoutSession(c.Request.Context(), user, body.ProductID)
	if errCreate != nil {
		if errors.Is(errCreate, payment.ErrInvalidEvent) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create checkout failed"})
		return
	}
	c.JSON(http.StatusCreated, session)
}

// Webhook processes a payment provider callback.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, errRead := c.GetRawData()
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")
	if errHandle := h.bridge.HandleWebhook(c.Request.Context(), signature, body); errHandle != nil {
		switch {
		case errors.Is(errHandle, payment.ErrBadSignature), errors.Is(errHandle, payment.ErrInvalidEvent):
			c.JSON(http.StatusBadRequest, gin.H{"error": "rejected"})
		default:
			log.WithError(errHandle).Error("process payment webhook failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
