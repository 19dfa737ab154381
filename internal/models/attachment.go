package models

import "time"

// AttachmentKind groups uploaded files.
type AttachmentKind string

const (
	AttachmentProof   AttachmentKind = "proof"
	AttachmentReceipt AttachmentKind = "receipt"
)

// Attachment describes a stored upload and a time-limited download link.
type Attachment struct {
	Kind        AttachmentKind `json:"kind"`
	Path        string         `json:"path"`
	ContentType string         `json:"contentType"`
	Size        int64          `json:"size"`
	URL         string         `json:"url"`
	ExpiresAt   time.Time      `json:"expiresAt"`
}
