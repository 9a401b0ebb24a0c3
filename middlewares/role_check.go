package middlewares

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scmsdev/scms-app/models"
	"github.com/scmsdev/scms-app/utils"
)

func contextRole(c *gin.Context) (string, bool) {
	roleInterface, exists := c.Get("role")
	if !exists {
		return "", false
	}
	role, ok := roleInterface.(string)
	return role, ok
}

// RequireDeveloperRole gates the routes only creator-class roles
// (Developer, QA Engineer, DevOps Engineer) may call.
func RequireDeveloperRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := contextRole(c)
		if !ok {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
			c.Abort()
			return
		}
		if !models.IsDeveloperRole(role) {
			utils.RespondError(c, http.StatusForbidden,
				errors.New("Forbidden: Your role does not have permission for this action."))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdminRole gates the account management and statistics routes.
func RequireAdminRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := contextRole(c)
		if !ok {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
			c.Abort()
			return
		}
		if !models.IsAdminRole(role) {
			utils.RespondError(c, http.StatusForbidden,
				errors.New("Access denied. Admin privileges required."))
			c.Abort()
			return
		}
		c.Next()
	}
}
