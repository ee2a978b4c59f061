package middleware

import (
	"github.com/Conceptual-Machines/magda-markov/internal/models"
	"github.com/gin-gonic/gin"
)

// NoAuth is a pass-through middleware for AUTH_MODE=none.
// Every request acts as an anonymous admin of a single-user install.
func NoAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextUserID, "anonymous")
		c.Set(ContextUserRole, models.RoleAdmin)
		c.Next()
	}
}
