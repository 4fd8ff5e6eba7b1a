package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-focus-api/internal/models"
	appErrors "github.com/noah-isme/sma-focus-api/pkg/errors"
	"github.com/noah-isme/sma-focus-api/pkg/response"
)

// StudentResolver maps a STUDENT account to its student record.
type StudentResolver interface {
	StudentIDForUser(ctx context.Context, userID string) (string, error)
}

// RequireRoles rejects callers whose role is not listed.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
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

// StudentSelf limits STUDENT callers to the student named by the route parameter. Other roles pass.
func StudentSelf(resolver StudentResolver, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := AuthorizeStudent(c.Request.Context(), resolver, CurrentUser(c), c.Param(param)); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// AuthorizeStudent returns nil when claims may act on studentID.
func AuthorizeStudent(ctx context.Context, resolver StudentResolver, claims *models.JWTClaims, studentID string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleStudent {
		return nil
	}
	own, err := resolver.StudentIDForUser(ctx, claims.UserID)
	if err != nil {
		return appErrors.Storage(err, "failed to resolve student")
	}
	if own == "" || own != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "students may only access their own data")
	}
	return nil
}
