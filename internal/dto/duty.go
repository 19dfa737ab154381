package dto

import "time"

// CreateDutyRequest defines payload for assigning a new duty.
type CreateDutyRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=2000"`
	ScheduledAt *time.Time `json:"scheduledAt"`
	AssigneeID  string     `json:"assigneeId" validate:"required"`
	Points      int        `json:"points" validate:"gte=0,lte=1000"`
}

// SubmitProofRequest carries the optional stored proof photo.
type SubmitProofRequest struct {
	ProofPath string `json:"proofPath" validate:"max=512"`
}

// DutyQuery captures list filters from the query string.
type DutyQuery struct {
	AssigneeID string
	Status     string
	Mine       bool
}
