// Package memory provides map-backed repositories used by tests and demo mode.
// Every write runs under one store-wide lock, so multi-record transitions
// (state change plus audit row or point credit) commit atomically, and version
// checks give the same compare-and-swap semantics as the SQL repositories.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/classpal-api/internal/models"
)

// Store holds every entity family of a ClassPal deployment in memory.
type Store struct {
	mu sync.RWMutex

	users   map[string]models.User
	classes map[string]models.ClassSummary
	members map[string]map[string]models.ClassMember

	duties    map[string]models.Duty
	dutyOrder []string
	points    map[string]map[string]models.PointBalance

	events     map[string]models.EventItem
	eventOrder []string
	invitees   map[string]map[string]struct{}
	responses  map[string]map[string]models.EventResponse
	attendance map[string]map[string]models.EventAttendance

	assets     map[string]models.Asset
	assetOrder []string
	audit      []models.AssetAuditEntry

	transactions []models.FundTransaction
	debts        map[string]models.DebtEntry
	debtOrder    []string

	seq int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:      make(map[string]models.User),
		classes:    make(map[string]models.ClassSummary),
		members:    make(map[string]map[string]models.ClassMember),
		duties:     make(map[string]models.Duty),
		points:     make(map[string]map[string]models.PointBalance),
		events:     make(map[string]models.EventItem),
		invitees:   make(map[string]map[string]struct{}),
		responses:  make(map[string]map[string]models.EventResponse),
		attendance: make(map[string]map[string]models.EventAttendance),
		assets:     make(map[string]models.Asset),
		debts:      make(map[string]models.DebtEntry),
	}
}

// Users returns the user repository view.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Classes returns the class repository view.
func (s *Store) Classes() *ClassRepository { return &ClassRepository{s: s} }

// Duties returns the duty repository view.
func (s *Store) Duties() *DutyRepository { return &DutyRepository{s: s} }

// Events returns the event repository view.
func (s *Store) Events() *EventRepository { return &EventRepository{s: s} }

// Assets returns the asset repository view.
func (s *Store) Assets() *AssetRepository { return &AssetRepository{s: s} }

// Funds returns the fund repository view.
func (s *Store) Funds() *FundRepository { return &FundRepository{s: s} }

// PutUser inserts or replaces a user.
func (s *Store) PutUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// PutClass inserts or replaces a class.
func (s *Store) PutClass(class models.ClassSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes[class.ID] = class
}

// PutMember inserts or replaces a class membership.
func (s *Store) PutMember(member models.ClassMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[member.ClassID] == nil {
		s.members[member.ClassID] = make(map[string]models.ClassMember)
	}
	if member.DisplayName == "" {
		member.DisplayName = s.users[member.UserID].DisplayName
	}
	s.members[member.ClassID][member.UserID] = member
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// UserRepository reads users.
type UserRepository struct{ s *Store }

// FindByID returns a user or sql.ErrNoRows.
func (r *UserRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

// ClassRepository reads classes and memberships.
type ClassRepository struct{ s *Store }

// FindByID returns a class or sql.ErrNoRows.
func (r *ClassRepository) FindByID(_ context.Context, id string) (*models.ClassSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	class, ok := r.s.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &class, nil
}

// ListForUser returns the classes the user belongs to, ordered by name.
func (r *ClassRepository) ListForUser(_ context.Context, userID string) ([]models.ClassSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.ClassSummary
	for classID, members := range r.s.members {
		if _, ok := members[userID]; ok {
			out = append(out, r.s.classes[classID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FindMember returns a membership or sql.ErrNoRows.
func (r *ClassRepository) FindMember(_ context.Context, classID, userID string) (*models.ClassMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	member, ok := r.s.members[classID][userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &member, nil
}

// ListMembers returns class members ordered by display name.
func (r *ClassRepository) ListMembers(_ context.Context, classID string) ([]models.ClassMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.ClassMember, 0, len(r.s.members[classID]))
	for _, m := range r.s.members[classID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName == out[j].DisplayName {
			return out[i].UserID < out[j].UserID
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	return out, nil
}
