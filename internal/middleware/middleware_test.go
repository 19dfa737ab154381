package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classpal-api/internal/models"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
	"github.com/noah-isme/classpal-api/pkg/logger"
)

type staticValidator map[string]*models.JWTClaims

func (v staticValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type memberResolverFunc func(ctx context.Context, actor models.Actor) (*models.ClassMember, error)

func (f memberResolverFunc) Member(ctx context.Context, actor models.Actor) (*models.ClassMember, error) {
	return f(ctx, actor)
}

func serve(engine *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/classes/c1/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator := staticValidator{"good": {UserID: "u1", Role: models.RoleStudent}}

	engine := gin.New()
	engine.GET("/classes/:classId/x", JWT(validator), func(c *gin.Context) {
		claims := Claims(c)
		require.NotNil(t, claims)
		c.String(http.StatusOK, claims.UserID+"|"+c.GetString(logger.UserIDKey))
	})

	assert.Equal(t, http.StatusUnauthorized, serve(engine, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(engine, "Basic good").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(engine, "Bearer bad").Code)

	w := serve(engine, "bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1|u1", w.Body.String())
}

func TestOptionalJWTNeverBlocks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator := staticValidator{"good": {UserID: "u1"}}

	engine := gin.New()
	engine.GET("/classes/:classId/x", OptionalJWT(validator), func(c *gin.Context) {
		if claims := Claims(c); claims != nil {
			c.String(http.StatusOK, claims.UserID)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	assert.Equal(t, "anonymous", serve(engine, "").Body.String())
	assert.Equal(t, "anonymous", serve(engine, "Bearer bad").Body.String())
	assert.Equal(t, "u1", serve(engine, "Bearer good").Body.String())
}

func TestClassScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator := staticValidator{
		"member":   {UserID: "u1", Role: models.RoleStudent},
		"outsider": {UserID: "u9", Role: models.RoleStudent},
	}
	var seen models.Actor
	resolver := memberResolverFunc(func(_ context.Context, actor models.Actor) (*models.ClassMember, error) {
		seen = actor
		if actor.UserID != "u1" {
			return nil, appErrors.ForEntity(appErrors.ErrForbidden, actor.ClassID)
		}
		return &models.ClassMember{ClassID: actor.ClassID, UserID: actor.UserID, Role: models.ClassRoleStudent}, nil
	})

	engine := gin.New()
	engine.GET("/classes/:classId/x", JWT(validator), ClassScope(resolver), func(c *gin.Context) {
		member, ok := c.Get(ContextMemberKey)
		require.True(t, ok)
		c.String(http.StatusOK, string(member.(*models.ClassMember).Role))
	})

	w := serve(engine, "Bearer member")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "STUDENT", w.Body.String())
	assert.Equal(t, models.Actor{UserID: "u1", ClassID: "c1", Role: models.RoleStudent}, seen)

	assert.Equal(t, http.StatusForbidden, serve(engine, "Bearer outsider").Code)
}

func TestResponseMetaStampsProcessingTime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/classes/:classId/x", WithResponseMeta(), func(c *gin.Context) {
		SetMeta(c, "source", "ledger")
		c.JSON(http.StatusOK, ExtractMeta(c))
	})

	w := serve(engine, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"ledger"`)
	assert.Contains(t, w.Body.String(), `"processing_time_ms"`)
}
