package models

import "time"

// DutyStatus enumerates the duty lifecycle.
type DutyStatus string

const (
	DutyStatusPending         DutyStatus = "pending"
	DutyStatusWaitingApproval DutyStatus = "waiting_approval"
	DutyStatusDone            DutyStatus = "done"
)

// Valid reports whether s is a known status.
func (s DutyStatus) Valid() bool {
	switch s {
	case DutyStatusPending, DutyStatusWaitingApproval, DutyStatusDone:
		return true
	}
	return false
}

// Duty is an assignable classroom chore with a point reward.
type Duty struct {
	ID          string     `db:"id" json:"id"`
	ClassID     string     `db:"class_id" json:"classId"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	ScheduledAt *time.Time `db:"scheduled_at" json:"scheduledAt,omitempty"`
	AssigneeID  string     `db:"assignee_id" json:"assigneeId"`
	Status      DutyStatus `db:"status" json:"status"`
	Points      int        `db:"points" json:"points"`
	ProofPath   *string    `db:"proof_path" json:"proofPath,omitempty"`
	SubmittedAt *time.Time `db:"submitted_at" json:"submittedAt,omitempty"`
	ReviewedBy  *string    `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time `db:"reviewed_at" json:"reviewedAt,omitempty"`
	CreatedBy   string     `db:"created_by" json:"createdBy"`
	Version     int64      `db:"version" json:"version"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// DutyFilter constrains duty listings.
type DutyFilter struct {
	ClassID    string
	AssigneeID string
	Status     DutyStatus
}

// PointCredit is applied to the per-user point ledger when a duty is approved.
type PointCredit struct {
	ClassID string
	UserID  string
	Points  int
	At      time.Time
}

// PointBalance is one row of the per-class point ledger. ReachedAt records when
// the current total was reached and breaks leaderboard ties.
type PointBalance struct {
	ClassID     string    `db:"class_id" json:"classId"`
	UserID      string    `db:"user_id" json:"userId"`
	DisplayName string    `db:"display_name" json:"displayName"`
	Points      int       `db:"points" json:"points"`
	ReachedAt   time.Time `db:"reached_at" json:"reachedAt"`
}

// LeaderboardEntry is a ranked point balance.
type LeaderboardEntry struct {
	Rank int `json:"rank"`
	PointBalance
}
