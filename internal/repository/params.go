package repository

import (
	"time"

	"github.com/noah-isme/classpal-api/internal/models"
)

// DutyTransitionParams moves a duty to the state held in Duty when its stored
// version still equals ExpectedVersion. A non-nil Credit is applied to the
// point ledger in the same transaction.
type DutyTransitionParams struct {
	Duty            *models.Duty
	ExpectedVersion int64
	Credit          *models.PointCredit
}

// EventResponseParams records an invitee's answer together with the new
// bucket counts when the event version still equals ExpectedVersion.
type EventResponseParams struct {
	EventID         string
	ClassID         string
	ExpectedVersion int64
	Counts          models.ResponseCounts
	Response        models.EventResponse
	UpdatedAt       time.Time
}

// EventCloseParams closes an event at ExpectedVersion.
type EventCloseParams struct {
	EventID         string
	ClassID         string
	ExpectedVersion int64
	UpdatedAt       time.Time
}

// EventCheckInParams stores an attendance row and raises the event's
// check-in tally when the event version still equals ExpectedVersion.
type EventCheckInParams struct {
	EventID         string
	ClassID         string
	ExpectedVersion int64
	Attendance      models.EventAttendance
}

// AssetTransitionParams moves an asset to the state held in Asset and appends
// Entry to the audit log when the stored version equals ExpectedVersion.
type AssetTransitionParams struct {
	Asset           *models.Asset
	ExpectedVersion int64
	Entry           *models.AssetAuditEntry
}

// DebtSettleParams marks a debt settled at ExpectedVersion.
type DebtSettleParams struct {
	DebtID          string
	ClassID         string
	ExpectedVersion int64
	SettledAt       time.Time
	SettledBy       string
}
