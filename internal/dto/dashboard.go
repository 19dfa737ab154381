package dto

import (
	"time"

	"github.com/noah-isme/classpal-api/internal/models"
)

// ActivityKind tags an entry of the dashboard activity feed.
type ActivityKind string

const (
	ActivityDuty  ActivityKind = "duty"
	ActivityAsset ActivityKind = "asset"
	ActivityFund  ActivityKind = "fund"
)

// ActivityItem is one line of the recent activity feed.
type ActivityItem struct {
	Kind     ActivityKind `json:"kind"`
	EntityID string       `json:"entityId"`
	Label    string       `json:"label"`
	Detail   string       `json:"detail"`
	UserID   string       `json:"userId,omitempty"`
	At       time.Time    `json:"at"`
}

// Dashboard is the per-actor class overview.
type Dashboard struct {
	ClassID        string             `json:"classId"`
	GeneratedAt    time.Time          `json:"generatedAt"`
	PendingDuties  []models.Duty      `json:"pendingDuties"`
	ReviewQueue    int                `json:"reviewQueue"`
	OpenEvents     []models.EventItem `json:"openEvents"`
	RecentActivity []ActivityItem     `json:"recentActivity"`
}
