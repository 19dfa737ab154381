package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classpal-api/internal/dto"
	"github.com/noah-isme/classpal-api/internal/middleware"
	"github.com/noah-isme/classpal-api/internal/models"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
	"github.com/noah-isme/classpal-api/pkg/response"
)

type eventService interface {
	Create(ctx context.Context, actor models.Actor, req dto.CreateEventRequest) (*models.EventItem, error)
	List(ctx context.Context, actor models.Actor) ([]models.EventItem, error)
	Respond(ctx context.Context, actor models.Actor, eventID string, req dto.RespondEventRequest) (*models.EventItem, error)
	Close(ctx context.Context, actor models.Actor, eventID string) (*models.EventItem, error)
	PingNonResponders(ctx context.Context, actor models.Actor, eventID string) (*dto.PingResult, error)
	CheckInCode(ctx context.Context, actor models.Actor, eventID string) (*dto.CheckInCode, error)
	CheckIn(ctx context.Context, actor models.Actor, eventID string, req dto.CheckInRequest) (*models.EventAttendance, error)
	Attendance(ctx context.Context, actor models.Actor, eventID string) ([]models.EventAttendance, error)
}

// EventHandler exposes event scheduling and RSVP endpoints.
type EventHandler struct {
	service eventService
}

// NewEventHandler constructs the handler.
func NewEventHandler(service eventService) *EventHandler {
	return &EventHandler{service: service}
}

// List godoc
// @Summary List class events with the caller's response
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/events [get]
func (h *EventHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	events, err := h.service.List(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(events))
	response.JSON(c, http.StatusOK, events, nil, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Schedule an event
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param payload body dto.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{classId}/events [post]
func (h *EventHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}
	event, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Respond godoc
// @Summary Register for or decline an event
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param eventId path string true "Event ID"
// @Param payload body dto.RespondEventRequest true "RSVP choice"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/events/{eventId}/responses [post]
func (h *EventHandler) Respond(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RespondEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid response payload"))
		return
	}
	event, err := h.service.Respond(c.Request.Context(), actor, c.Param("eventId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Close godoc
// @Summary Close an event to further responses
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param eventId path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/events/{eventId}/close [post]
func (h *EventHandler) Close(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	event, err := h.service.Close(c.Request.Context(), actor, c.Param("eventId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Ping godoc
// @Summary Queue reminders for invitees who have not responded
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param eventId path string true "Event ID"
// @Success 202 {object} response.Envelope
// @Router /classes/{classId}/events/{eventId}/ping [post]
func (h *EventHandler) Ping(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.PingNonResponders(c.Request.Context(), actor, c.Param("eventId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, result, nil)
}

// CheckInCode godoc
// @Summary Issue a short-lived check-in code for an event
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param eventId path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/events/{eventId}/checkin-code [get]
func (h *EventHandler) CheckInCode(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	code, err := h.service.CheckInCode(c.Request.Context(), actor, c.Param("eventId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, code, nil)
}

// CheckIn godoc
// @Summary Check in to an event with a scanned code
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param eventId path string true "Event ID"
// @Param payload body dto.CheckInRequest true "Check-in code"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/events/{eventId}/checkin [post]
func (h *EventHandler) CheckIn(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-in payload"))
		return
	}
	attendance, err := h.service.CheckIn(c.Request.Context(), actor, c.Param("eventId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attendance, nil)
}

// Attendance godoc
// @Summary List check-ins recorded for an event
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param eventId path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/events/{eventId}/attendance [get]
func (h *EventHandler) Attendance(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	rows, err := h.service.Attendance(c.Request.Context(), actor, c.Param("eventId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(rows))
	response.JSON(c, http.StatusOK, rows, nil, middleware.ExtractMeta(c))
}
