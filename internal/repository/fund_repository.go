package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classpal-api/internal/models"
)

const debtColumns = `d.id, d.class_id, d.student_id, COALESCE(u.display_name, '') AS student_name, d.amount_due,
	d.due_date, d.settled_at, d.settled_by, d.version, d.created_at`

// FundRepository persists the class fund ledger and outstanding debts.
type FundRepository struct {
	db *sqlx.DB
}

// NewFundRepository constructs the repository.
func NewFundRepository(db *sqlx.DB) *FundRepository {
	return &FundRepository{db: db}
}

// AppendTransaction inserts a ledger entry and reads back its sequence number.
func (r *FundRepository) AppendTransaction(ctx context.Context, tx *models.FundTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	const query = `INSERT INTO fund_transactions
	(id, class_id, type, description, amount, category, date, has_receipt, receipt_path, recorded_by, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING seq`
	if err := r.db.GetContext(ctx, &tx.Seq, query,
		tx.ID, tx.ClassID, tx.Type, tx.Description, tx.Amount, tx.Category, tx.Date, tx.HasReceipt,
		tx.ReceiptPath, tx.RecordedBy, tx.CreatedAt); err != nil {
		return fmt.Errorf("append fund transaction: %w", err)
	}
	return nil
}

// ListTransactions returns ledger entries ordered by date then insertion.
func (r *FundRepository) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.FundTransaction, error) {
	query := `SELECT id, class_id, seq, type, description, amount, category, date, has_receipt, receipt_path, recorded_by, created_at
FROM fund_transactions WHERE class_id = $1`
	args := []interface{}{filter.ClassID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += " AND type = $2"
	}
	query += " ORDER BY date, seq"

	var txs []models.FundTransaction
	if err := r.db.SelectContext(ctx, &txs, query, args...); err != nil {
		return nil, fmt.Errorf("list fund transactions: %w", err)
	}
	return txs, nil
}

// Totals sums the ledger of a class.
func (r *FundRepository) Totals(ctx context.Context, classID string) (models.LedgerTotals, error) {
	const query = `SELECT
	COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0) AS total_income,
	COALESCE(SUM(amount) FILTER (WHERE type = 'expense'), 0) AS total_expense,
	COUNT(*) AS transaction_count
FROM fund_transactions WHERE class_id = $1`
	var totals models.LedgerTotals
	if err := r.db.GetContext(ctx, &totals, query, classID); err != nil {
		return models.LedgerTotals{}, fmt.Errorf("sum fund ledger: %w", err)
	}
	return totals, nil
}

// CreateDebt inserts a debt entry.
func (r *FundRepository) CreateDebt(ctx context.Context, debt *models.DebtEntry) error {
	if debt.ID == "" {
		debt.ID = uuid.NewString()
	}
	if debt.Version == 0 {
		debt.Version = 1
	}
	const query = `INSERT INTO debts (id, class_id, student_id, amount_due, due_date, settled_at, settled_by, version, created_at)
VALUES (:id, :class_id, :student_id, :amount_due, :due_date, :settled_at, :settled_by, :version, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, debt); err != nil {
		return fmt.Errorf("create debt: %w", err)
	}
	return nil
}

// FindDebt returns a debt of the class.
func (r *FundRepository) FindDebt(ctx context.Context, classID, id string) (*models.DebtEntry, error) {
	const query = `SELECT ` + debtColumns + ` FROM debts d LEFT JOIN users u ON u.id = d.student_id
WHERE d.class_id = $1 AND d.id = $2`
	var debt models.DebtEntry
	if err := r.db.GetContext(ctx, &debt, query, classID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find debt: %w", err)
	}
	return &debt, nil
}

// ListDebts returns the debts of a class ordered by due date.
func (r *FundRepository) ListDebts(ctx context.Context, classID string) ([]models.DebtEntry, error) {
	const query = `SELECT ` + debtColumns + ` FROM debts d LEFT JOIN users u ON u.id = d.student_id
WHERE d.class_id = $1 ORDER BY d.due_date, d.created_at`
	var debts []models.DebtEntry
	if err := r.db.SelectContext(ctx, &debts, query, classID); err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	return debts, nil
}

// SettleDebt marks an open debt settled guarded by the expected version.
func (r *FundRepository) SettleDebt(ctx context.Context, params DebtSettleParams) error {
	const query = `UPDATE debts SET settled_at = $1, settled_by = $2, version = version + 1
WHERE id = $3 AND class_id = $4 AND version = $5 AND settled_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, params.SettledAt, params.SettledBy, params.DebtID, params.ClassID, params.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("settle debt: %w", err)
	}
	return expectOneRow(result, "settle debt")
}
