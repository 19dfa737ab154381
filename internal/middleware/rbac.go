package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classpal-api/internal/models"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
	"github.com/noah-isme/classpal-api/pkg/response"
)

// ContextMemberKey is the gin context key storing the resolved class membership.
const ContextMemberKey = "classMember"

// MemberResolver resolves the caller's membership in the active class.
type MemberResolver interface {
	Member(ctx context.Context, actor models.Actor) (*models.ClassMember, error)
}

// ClassScope rejects requests for a class the caller does not belong to.
// Capability checks stay in the services; this only guards the class boundary.
func ClassScope(resolver MemberResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		classID := strings.TrimSpace(c.Param("classId"))
		member, err := resolver.Member(c.Request.Context(), models.Actor{
			UserID:  claims.UserID,
			ClassID: classID,
			Role:    claims.Role,
		})
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextMemberKey, member)
		c.Next()
	}
}
