package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classpal-api/internal/dto"
	"github.com/noah-isme/classpal-api/internal/models"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
	"github.com/noah-isme/classpal-api/pkg/response"
)

type assetService interface {
	Create(ctx context.Context, actor models.Actor, req dto.CreateAssetRequest) (*models.Asset, error)
	List(ctx context.Context, actor models.Actor) ([]models.Asset, error)
	Borrow(ctx context.Context, actor models.Actor, assetID string) (*models.Asset, error)
	Return(ctx context.Context, actor models.Actor, assetID string) (*models.Asset, error)
	AuditLog(ctx context.Context, actor models.Actor, assetID string, limit int) ([]models.AssetAuditEntry, error)
}

// AssetHandler exposes shared asset borrowing endpoints.
type AssetHandler struct {
	service assetService
}

// NewAssetHandler constructs the handler.
func NewAssetHandler(service assetService) *AssetHandler {
	return &AssetHandler{service: service}
}

// List godoc
// @Summary List class assets
// @Tags Assets
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/assets [get]
func (h *AssetHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	assets, err := h.service.List(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assets, nil)
}

// Create godoc
// @Summary Register a shared asset
// @Tags Assets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param payload body dto.CreateAssetRequest true "Asset payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{classId}/assets [post]
func (h *AssetHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid asset payload"))
		return
	}
	asset, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, asset)
}

// Borrow godoc
// @Summary Borrow an available asset
// @Tags Assets
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param assetId path string true "Asset ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/assets/{assetId}/borrow [post]
func (h *AssetHandler) Borrow(c *gin.Context) {
	h.transition(c, h.service.Borrow)
}

// Return godoc
// @Summary Return a borrowed asset
// @Tags Assets
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param assetId path string true "Asset ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/assets/{assetId}/return [post]
func (h *AssetHandler) Return(c *gin.Context) {
	h.transition(c, h.service.Return)
}

func (h *AssetHandler) transition(c *gin.Context, apply func(context.Context, models.Actor, string) (*models.Asset, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	asset, err := apply(c.Request.Context(), actor, c.Param("assetId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, asset, nil)
}

// AuditLog godoc
// @Summary Borrow and return history, newest first
// @Tags Assets
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param assetId query string false "Limit to one asset"
// @Param limit query int false "Maximum entries (default 50, max 500)"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/assets/audit [get]
func (h *AssetHandler) AuditLog(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.service.AuditLog(c.Request.Context(), actor, strings.TrimSpace(c.Query("assetId")), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
