package memory

import (
	"context"
	"database/sql"
	"sort"

	"github.com/noah-isme/classpal-api/internal/models"
	"github.com/noah-isme/classpal-api/internal/repository"
)

// FundRepository stores the append-only fund ledger and the debt list.
type FundRepository struct{ s *Store }

// AppendTransaction adds a ledger entry and assigns its sequence number.
func (r *FundRepository) AppendTransaction(_ context.Context, tx *models.FundTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&tx.ID)
	tx.Seq = r.s.nextSeq()
	r.s.transactions = append(r.s.transactions, *tx)
	return nil
}

// ListTransactions returns ledger entries ordered by date then insertion.
func (r *FundRepository) ListTransactions(_ context.Context, filter models.TransactionFilter) ([]models.FundTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.FundTransaction, 0)
	for _, tx := range r.s.transactions {
		if tx.ClassID != filter.ClassID {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

// Totals sums the ledger of a class.
func (r *FundRepository) Totals(_ context.Context, classID string) (models.LedgerTotals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var totals models.LedgerTotals
	for _, tx := range r.s.transactions {
		if tx.ClassID != classID {
			continue
		}
		totals.TransactionCount++
		switch tx.Type {
		case models.TransactionIncome:
			totals.TotalIncome += tx.Amount
		case models.TransactionExpense:
			totals.TotalExpense += tx.Amount
		}
	}
	return totals, nil
}

// CreateDebt inserts a debt entry.
func (r *FundRepository) CreateDebt(_ context.Context, debt *models.DebtEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&debt.ID)
	if debt.Version == 0 {
		debt.Version = 1
	}
	if debt.StudentName == "" {
		debt.StudentName = r.s.users[debt.StudentID].DisplayName
	}
	r.s.debts[debt.ID] = *debt
	r.s.debtOrder = append(r.s.debtOrder, debt.ID)
	return nil
}

// FindDebt returns a debt of the class or sql.ErrNoRows.
func (r *FundRepository) FindDebt(_ context.Context, classID, id string) (*models.DebtEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	debt, ok := r.s.debts[id]
	if !ok || debt.ClassID != classID {
		return nil, sql.ErrNoRows
	}
	return &debt, nil
}

// ListDebts returns the debts of a class ordered by due date.
func (r *FundRepository) ListDebts(_ context.Context, classID string) ([]models.DebtEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.DebtEntry, 0)
	for _, id := range r.s.debtOrder {
		if debt := r.s.debts[id]; debt.ClassID == classID {
			out = append(out, debt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

// SettleDebt marks an unsettled debt settled when the version matches.
func (r *FundRepository) SettleDebt(_ context.Context, params repository.DebtSettleParams) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	debt, ok := r.s.debts[params.DebtID]
	if !ok || debt.ClassID != params.ClassID || debt.Version != params.ExpectedVersion || debt.Settled() {
		return sql.ErrNoRows
	}
	settledAt := params.SettledAt
	settledBy := params.SettledBy
	debt.SettledAt = &settledAt
	debt.SettledBy = &settledBy
	debt.Version++
	r.s.debts[debt.ID] = debt
	return nil
}
