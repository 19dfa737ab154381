package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classpal-api/internal/dto"
	"github.com/noah-isme/classpal-api/internal/middleware"
	"github.com/noah-isme/classpal-api/internal/models"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
	"github.com/noah-isme/classpal-api/pkg/response"
)

type dutyService interface {
	Create(ctx context.Context, actor models.Actor, req dto.CreateDutyRequest) (*models.Duty, error)
	List(ctx context.Context, actor models.Actor, query dto.DutyQuery) ([]models.Duty, error)
	SubmitProof(ctx context.Context, actor models.Actor, dutyID string, req dto.SubmitProofRequest) (*models.Duty, error)
	Approve(ctx context.Context, actor models.Actor, dutyID string) (*models.Duty, error)
	Reject(ctx context.Context, actor models.Actor, dutyID string) (*models.Duty, error)
	Leaderboard(ctx context.Context, actor models.Actor) ([]models.LeaderboardEntry, error)
}

// DutyHandler manages class duty endpoints.
type DutyHandler struct {
	service dutyService
}

// NewDutyHandler constructs the handler.
func NewDutyHandler(service dutyService) *DutyHandler {
	return &DutyHandler{service: service}
}

// List godoc
// @Summary List duties of a class
// @Tags Duties
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param assignee query string false "Assignee user ID"
// @Param status query string false "pending, waiting_approval or done"
// @Param mine query bool false "Only duties assigned to the caller"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/duties [get]
func (h *DutyHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.DutyQuery{
		AssigneeID: strings.TrimSpace(c.Query("assignee")),
		Status:     strings.TrimSpace(c.Query("status")),
		Mine:       queryBool(c, "mine"),
	}
	duties, err := h.service.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(duties))
	response.JSON(c, http.StatusOK, duties, nil, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Assign a duty
// @Tags Duties
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param payload body dto.CreateDutyRequest true "Duty payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{classId}/duties [post]
func (h *DutyHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateDutyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid duty payload"))
		return
	}
	duty, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, duty)
}

// SubmitProof godoc
// @Summary Submit proof of a completed duty
// @Tags Duties
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param dutyId path string true "Duty ID"
// @Param payload body dto.SubmitProofRequest false "Stored proof photo"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/duties/{dutyId}/proof [post]
func (h *DutyHandler) SubmitProof(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitProofRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid proof payload"))
			return
		}
	}
	duty, err := h.service.SubmitProof(c.Request.Context(), actor, c.Param("dutyId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, duty, nil)
}

// Approve godoc
// @Summary Approve a submitted duty and credit its points
// @Tags Duties
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param dutyId path string true "Duty ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/duties/{dutyId}/approve [post]
func (h *DutyHandler) Approve(c *gin.Context) {
	h.review(c, h.service.Approve)
}

// Reject godoc
// @Summary Send a submitted duty back to pending
// @Tags Duties
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param dutyId path string true "Duty ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/duties/{dutyId}/reject [post]
func (h *DutyHandler) Reject(c *gin.Context) {
	h.review(c, h.service.Reject)
}

func (h *DutyHandler) review(c *gin.Context, decide func(context.Context, models.Actor, string) (*models.Duty, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	duty, err := decide(c.Request.Context(), actor, c.Param("dutyId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, duty, nil)
}

// Leaderboard godoc
// @Summary Points leaderboard of a class
// @Tags Duties
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/leaderboard [get]
func (h *DutyHandler) Leaderboard(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entries, err := h.service.Leaderboard(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil, middleware.ExtractMeta(c))
}
