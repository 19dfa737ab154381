package models

import "time"

// ClassSummary describes a class a user can select as the active class.
type ClassSummary struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Advisor   string    `db:"advisor" json:"advisor"`
	Schedule  string    `db:"schedule" json:"schedule"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// ClassRole is the role a user holds inside one class.
type ClassRole string

const (
	ClassRoleStudent   ClassRole = "STUDENT"
	ClassRoleMonitor   ClassRole = "MONITOR"
	ClassRoleTreasurer ClassRole = "TREASURER"
	ClassRoleAdvisor   ClassRole = "ADVISOR"
)

// Capability names a command family guarded at the service layer.
type Capability string

const (
	CapabilityReviewDuties Capability = "review_duties"
	CapabilityManageDuties Capability = "manage_duties"
	CapabilityManageEvents Capability = "manage_events"
	CapabilityManageAssets Capability = "manage_assets"
	CapabilityManageFunds  Capability = "manage_funds"
)

var classRoleCapabilities = map[ClassRole][]Capability{
	ClassRoleMonitor: {
		CapabilityReviewDuties,
		CapabilityManageDuties,
		CapabilityManageEvents,
		CapabilityManageAssets,
	},
	ClassRoleTreasurer: {CapabilityManageFunds},
	ClassRoleAdvisor: {
		CapabilityReviewDuties,
		CapabilityManageDuties,
		CapabilityManageEvents,
		CapabilityManageAssets,
		CapabilityManageFunds,
	},
}

// Has reports whether the class role grants the capability.
func (r ClassRole) Has(capability Capability) bool {
	for _, c := range classRoleCapabilities[r] {
		if c == capability {
			return true
		}
	}
	return false
}

// Valid reports whether r is a known class role.
func (r ClassRole) Valid() bool {
	switch r {
	case ClassRoleStudent, ClassRoleMonitor, ClassRoleTreasurer, ClassRoleAdvisor:
		return true
	}
	return false
}

// ClassMember links a user to a class with a class-level role.
type ClassMember struct {
	ClassID     string    `db:"class_id" json:"classId"`
	UserID      string    `db:"user_id" json:"userId"`
	DisplayName string    `db:"display_name" json:"displayName"`
	Role        ClassRole `db:"role" json:"role"`
	JoinedAt    time.Time `db:"joined_at" json:"joinedAt"`
}

// Actor is the explicit session context passed to every command: who is
// acting and in which class.
type Actor struct {
	UserID  string
	ClassID string
	Role    UserRole
}
