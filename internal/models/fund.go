package models

import (
	"strings"
	"time"
)

// TransactionType distinguishes money coming in from money going out.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// Default categories offered by the fund log form.
var (
	IncomeCategories  = []string{"Contribution", "Late Payment", "Donation", "Fundraiser", "Other"}
	ExpenseCategories = []string{"Event", "Supplies", "Gift", "Equipment", "Food", "Other"}
)

// DefaultCategory is used when a transaction is recorded without one.
const DefaultCategory = "Other"

// Categories returns the categories accepted for t.
func (t TransactionType) Categories() []string {
	switch t {
	case TransactionIncome:
		return IncomeCategories
	case TransactionExpense:
		return ExpenseCategories
	}
	return nil
}

// NormalizeCategory trims category, applies DefaultCategory when it is empty
// and returns the listed spelling. ok is false for an unknown category.
func (t TransactionType) NormalizeCategory(category string) (string, bool) {
	category = strings.TrimSpace(category)
	if category == "" {
		return DefaultCategory, true
	}
	for _, candidate := range t.Categories() {
		if strings.EqualFold(candidate, category) {
			return candidate, true
		}
	}
	return category, false
}

// FundCategories lists the categories per transaction type.
type FundCategories struct {
	Income  []string `json:"income"`
	Expense []string `json:"expense"`
}

// FundTransaction is an append-only ledger entry. Amounts are integer VND.
type FundTransaction struct {
	ID          string          `db:"id" json:"id"`
	ClassID     string          `db:"class_id" json:"classId"`
	Seq         int64           `db:"seq" json:"seq"`
	Type        TransactionType `db:"type" json:"type"`
	Description string          `db:"description" json:"description"`
	Amount      int64           `db:"amount" json:"amount"`
	Category    string          `db:"category" json:"category"`
	Date        time.Time       `db:"date" json:"date"`
	HasReceipt  bool            `db:"has_receipt" json:"hasReceipt"`
	ReceiptPath *string         `db:"receipt_path" json:"receiptPath,omitempty"`
	RecordedBy  string          `db:"recorded_by" json:"recordedBy"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// Signed returns the amount with expenses negated.
func (t FundTransaction) Signed() int64 {
	if t.Type == TransactionExpense {
		return -t.Amount
	}
	return t.Amount
}

// TransactionFilter constrains ledger listings.
type TransactionFilter struct {
	ClassID string
	Type    TransactionType
}

// DebtEntry is an outstanding amount owed by a student.
type DebtEntry struct {
	ID          string     `db:"id" json:"id"`
	ClassID     string     `db:"class_id" json:"classId"`
	StudentID   string     `db:"student_id" json:"studentId"`
	StudentName string     `db:"student_name" json:"studentName"`
	AmountDue   int64      `db:"amount_due" json:"amountDue"`
	DueDate     time.Time  `db:"due_date" json:"dueDate"`
	SettledAt   *time.Time `db:"settled_at" json:"settledAt,omitempty"`
	SettledBy   *string    `db:"settled_by" json:"settledBy,omitempty"`
	Version     int64      `db:"version" json:"version"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

// Settled reports whether the debt was manually reconciled.
func (d DebtEntry) Settled() bool {
	return d.SettledAt != nil
}

// LedgerTotals are the raw sums over a class ledger.
type LedgerTotals struct {
	TotalIncome      int64 `db:"total_income" json:"totalIncome"`
	TotalExpense     int64 `db:"total_expense" json:"totalExpense"`
	TransactionCount int   `db:"transaction_count" json:"transactionCount"`
}

// FundSummary is the derived view of a class ledger. Balance is always
// TotalIncome - TotalExpense.
type FundSummary struct {
	LedgerTotals
	Balance         int64     `json:"balance"`
	OutstandingDebt int64     `json:"outstandingDebt"`
	OpenDebts       int       `json:"openDebts"`
	ComputedAt      time.Time `json:"computedAt"`
}

// FundReconciliation compares an externally reported balance to the ledger.
type FundReconciliation struct {
	ComputedBalance int64 `json:"computedBalance"`
	ReportedBalance int64 `json:"reportedBalance"`
	Drift           int64 `json:"drift"`
	Matches         bool  `json:"matches"`
}
