package middleware

import (
	"net/http"
	"strings"

	"ethesis-api/config"
	"ethesis-api/models"
	"ethesis-api/utils"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID = "userID"
	ctxUser   = "user"
	ctxRoles  = "roles"
)

// AuthMiddleware validates the bearer token and loads the user with its roles.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get token from header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		// Check Bearer prefix
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		// Check if user still exists; roles come from the store, not the token
		var user models.User
		if err := config.DB.WithContext(c.Request.Context()).Preload("Roles").First(&user, claims.UserID).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			c.Abort()
			return
		}

		c.Set(ctxUserID, user.ID)
		c.Set(ctxUser, &user)
		c.Set(ctxRoles, models.RoleNamesOf(user.Roles))

		c.Next()
	}
}

// CurrentUser returns the user loaded by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(ctxUser)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}

// RequireRole lets the request through when the user holds any of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ctxRoles)
		if !exists {
			c.JSON(http.StatusForbidden, gin.H{"error": "Role not found"})
			c.Abort()
			return
		}

		held, _ := value.([]string)
		allowed := false
		for _, want := range roles {
			for _, name := range held {
				if name == want {
					allowed = true
					break
				}
			}
		}

		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			c.Abort()
			return
		}

		c.Next()
	}
}
