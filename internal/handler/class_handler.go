package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classpal-api/internal/models"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
	"github.com/noah-isme/classpal-api/pkg/response"
)

type classService interface {
	Me(ctx context.Context, userID string) (*models.User, error)
	ListClasses(ctx context.Context, userID string) ([]models.ClassSummary, error)
	Members(ctx context.Context, actor models.Actor) ([]models.ClassMember, error)
}

// ClassHandler exposes the caller's profile, classes and class rosters.
type ClassHandler struct {
	service classService
}

// NewClassHandler constructs the handler.
func NewClassHandler(service classService) *ClassHandler {
	return &ClassHandler{service: service}
}

// Me godoc
// @Summary Current user profile
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me [get]
func (h *ClassHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	user, err := h.service.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// List godoc
// @Summary List classes of the current user
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	classes, err := h.service.ListClasses(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// Members godoc
// @Summary List class members
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/members [get]
func (h *ClassHandler) Members(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	members, err := h.service.Members(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, nil)
}
