package handlers

import (
	"net/http"

	"github.com/blogforge/blogforge/internal/ledger"

	"github.com/gin-gonic/gin"
)

// AccountHandler handles the authenticated user's own profile endpoints.
type AccountHandler struct {
	ledger *ledger.Ledger
}

// NewAccountHandler constructs an AccountHandler.
func NewAccountHandler(credits *ledger.Ledger) *AccountHandler {
	return &AccountHandler{ledger: credits}
}

// Me returns the authenticated user's profile.
func (h *AccountHandler) Me(c *gin.Context) {
	user := getUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"credits":  user.Credits,
	})
}

// Credits returns the authenticated user's current balance.
func (h *AccountHandler) Credits(c *gin.Context) {
	user := getUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	balance, errBalance := h.ledger.Balance(c.Request.Context(), user.ID)
	if errBalance != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query balance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"credits": balance})
}
