package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/al-maktaba/catalog-api/internal/models"
	appErrors "github.com/al-maktaba/catalog-api/pkg/errors"
	"github.com/al-maktaba/catalog-api/pkg/response"
)

// RequireRoles enforces role-based access control for routes. The caller
// must have one of the allowed roles in its token claims.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
