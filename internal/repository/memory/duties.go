package memory

import (
	"context"
	"database/sql"
	"sort"

	"github.com/noah-isme/classpal-api/internal/models"
	"github.com/noah-isme/classpal-api/internal/repository"
)

// DutyRepository stores duties and the per-class point ledger.
type DutyRepository struct{ s *Store }

// Create inserts a new duty.
func (r *DutyRepository) Create(_ context.Context, duty *models.Duty) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&duty.ID)
	if duty.Version == 0 {
		duty.Version = 1
	}
	r.s.duties[duty.ID] = *duty
	r.s.dutyOrder = append(r.s.dutyOrder, duty.ID)
	return nil
}

// FindByID returns a duty of the class or sql.ErrNoRows.
func (r *DutyRepository) FindByID(_ context.Context, classID, id string) (*models.Duty, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	duty, ok := r.s.duties[id]
	if !ok || duty.ClassID != classID {
		return nil, sql.ErrNoRows
	}
	return &duty, nil
}

// List returns duties matching the filter in creation order.
func (r *DutyRepository) List(_ context.Context, filter models.DutyFilter) ([]models.Duty, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.Duty, 0)
	for _, id := range r.s.dutyOrder {
		duty := r.s.duties[id]
		if duty.ClassID != filter.ClassID {
			continue
		}
		if filter.AssigneeID != "" && duty.AssigneeID != filter.AssigneeID {
			continue
		}
		if filter.Status != "" && duty.Status != filter.Status {
			continue
		}
		out = append(out, duty)
	}
	return out, nil
}

// Transition replaces the duty when its version matches and applies the
// optional point credit under the same lock.
func (r *DutyRepository) Transition(_ context.Context, params repository.DutyTransitionParams) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.duties[params.Duty.ID]
	if !ok || current.ClassID != params.Duty.ClassID || current.Version != params.ExpectedVersion {
		return sql.ErrNoRows
	}

	next := *params.Duty
	next.Version = params.ExpectedVersion + 1
	r.s.duties[next.ID] = next
	params.Duty.Version = next.Version

	if credit := params.Credit; credit != nil {
		if r.s.points[credit.ClassID] == nil {
			r.s.points[credit.ClassID] = make(map[string]models.PointBalance)
		}
		balance := r.s.points[credit.ClassID][credit.UserID]
		balance.ClassID = credit.ClassID
		balance.UserID = credit.UserID
		balance.Points += credit.Points
		balance.ReachedAt = credit.At
		r.s.points[credit.ClassID][credit.UserID] = balance
	}
	return nil
}

// Leaderboard returns the point ledger of a class, highest first. Ties go to
// whoever reached the total first, then to the lower user id.
func (r *DutyRepository) Leaderboard(_ context.Context, classID string) ([]models.PointBalance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.PointBalance, 0, len(r.s.points[classID]))
	for _, balance := range r.s.points[classID] {
		balance.DisplayName = r.s.users[balance.UserID].DisplayName
		out = append(out, balance)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if !a.ReachedAt.Equal(b.ReachedAt) {
			return a.ReachedAt.Before(b.ReachedAt)
		}
		return a.UserID < b.UserID
	})
	return out, nil
}
