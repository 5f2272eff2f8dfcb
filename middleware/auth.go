package middleware

import (
	"net/http"
	"strings"

	"tourbook/utils"

	"github.com/gin-gonic/gin"
)

// UserIDKey is the gin context key holding the authenticated customer.
const UserIDKey = "userID"

// JWTAuthMiddleware accepts an HS256 bearer token and stores its subject under
// UserIDKey.
func JWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{
				Message: "Missing or invalid Authorization header",
				Code:    "UNAUTHORIZED",
			})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		userID, err := utils.ExtractIDFromToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{
				Message: "Invalid token",
				Code:    "UNAUTHORIZED",
			})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}
