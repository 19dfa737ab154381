package models

import "time"

// AssetStatus enumerates lending states.
type AssetStatus string

const (
	AssetStatusAvailable AssetStatus = "available"
	AssetStatusInUse     AssetStatus = "in_use"
)

// Asset is a shared class item that can be borrowed.
type Asset struct {
	ID        string      `db:"id" json:"id"`
	ClassID   string      `db:"class_id" json:"classId"`
	Name      string      `db:"name" json:"name"`
	Icon      string      `db:"icon" json:"icon"`
	Status    AssetStatus `db:"status" json:"status"`
	HolderID  *string     `db:"holder_id" json:"holderId"`
	HeldSince *time.Time  `db:"held_since" json:"heldSince"`
	Version   int64       `db:"version" json:"version"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time   `db:"updated_at" json:"updatedAt"`

	// LastBorrowed is projected on listings of available assets.
	LastBorrowed *AssetLastUse `db:"-" json:"lastBorrowed,omitempty"`
}

// AssetLastUse names who returned an asset most recently and when.
type AssetLastUse struct {
	UserID     string    `json:"userId"`
	ReturnedAt time.Time `json:"returnedAt"`
}

// AssetAction is the kind of an audit record.
type AssetAction string

const (
	AssetActionBorrowed AssetAction = "borrowed"
	AssetActionReturned AssetAction = "returned"
)

// AssetAuditEntry is an immutable record of a borrow or return.
type AssetAuditEntry struct {
	ID        string      `db:"id" json:"id"`
	Seq       int64       `db:"seq" json:"seq"`
	ClassID   string      `db:"class_id" json:"classId"`
	AssetID   string      `db:"asset_id" json:"assetId"`
	AssetName string      `db:"asset_name" json:"assetName"`
	Action    AssetAction `db:"action" json:"action"`
	UserID    string      `db:"user_id" json:"userId"`
	Timestamp time.Time   `db:"timestamp" json:"timestamp"`
}

// AssetAuditFilter constrains audit listings.
type AssetAuditFilter struct {
	ClassID string
	AssetID string
	Limit   int
}
