package handlers

import (
	"github.com/blogforge/blogforge/internal/models"

	"github.com/gin-gonic/gin"
)

const userContextKey = "auth.user"

// SetUser stores the authenticated user on the request context.
func SetUser(c *gin.Context, user *models.User) {
	c.Set(userContextKey, user)
}

func getUser(c *gin.Context) *models.User {
	value, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}
