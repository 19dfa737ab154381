package dto

import (
	"time"

	"github.com/noah-isme/classpal-api/internal/models"
)

// CreateEventRequest defines payload for scheduling an event.
type CreateEventRequest struct {
	Title        string     `json:"title" validate:"required,max=200"`
	Description  string     `json:"description" validate:"max=2000"`
	Location     string     `json:"location" validate:"max=200"`
	StartsAt     time.Time  `json:"startsAt" validate:"required"`
	SignupEndsAt *time.Time `json:"signupEndsAt"`
	Capacity     int        `json:"capacity" validate:"gte=0"`
	InviteeIDs   []string   `json:"inviteeIds" validate:"omitempty,dive,required"`
}

// RespondEventRequest is an RSVP answer.
type RespondEventRequest struct {
	Choice models.ResponseChoice `json:"choice" validate:"required,oneof=registered declined"`
}

// PingResult reports how many reminders were queued.
type PingResult struct {
	EventID   string `json:"eventId"`
	Reminders int    `json:"reminders"`
}

// CheckInCode is the short-lived token rendered as the event's QR code.
type CheckInCode struct {
	EventID   string    `json:"eventId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CheckInRequest carries the scanned check-in token.
type CheckInRequest struct {
	Token string `json:"token" validate:"required,max=1024"`
}
