package dto

import (
	"time"

	"github.com/noah-isme/classpal-api/internal/models"
)

// RecordTransactionRequest defines payload for a ledger entry.
type RecordTransactionRequest struct {
	Type        models.TransactionType `json:"type" validate:"required,oneof=income expense"`
	Description string                 `json:"description" validate:"required,max=300"`
	Amount      int64                  `json:"amount"`
	Category    string                 `json:"category" validate:"max=60"`
	HasReceipt  bool                   `json:"hasReceipt"`
	ReceiptPath string                 `json:"receiptPath" validate:"max=512"`
	Date        *time.Time             `json:"date"`
}

// ReconcileBalanceRequest carries an externally reported balance.
type ReconcileBalanceRequest struct {
	ReportedBalance *int64 `json:"reportedBalance" validate:"required"`
}

// CreateDebtRequest defines payload for an outstanding due.
type CreateDebtRequest struct {
	StudentID string    `json:"studentId" validate:"required"`
	AmountDue int64     `json:"amountDue"`
	DueDate   time.Time `json:"dueDate" validate:"required"`
}

// ExportFormat names a statement rendering.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportedFile is a rendered statement ready to stream.
type ExportedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
