package memory

import (
	"context"
	"database/sql"
	"sort"

	"github.com/noah-isme/classpal-api/internal/models"
	"github.com/noah-isme/classpal-api/internal/repository"
)

// EventRepository stores events, their fixed invitee lists and responses.
type EventRepository struct{ s *Store }

// Create inserts an event with its invitees. All invitees start in the
// no-response bucket.
func (r *EventRepository) Create(_ context.Context, event *models.EventItem, inviteeIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&event.ID)
	if event.Version == 0 {
		event.Version = 1
	}

	invitees := make(map[string]struct{}, len(inviteeIDs))
	for _, id := range inviteeIDs {
		invitees[id] = struct{}{}
	}
	event.TotalInvitees = len(invitees)
	event.ResponseCounts = models.ResponseCounts{NoResponse: len(invitees)}
	event.CurrentUserResponse = nil

	r.s.events[event.ID] = *event
	r.s.eventOrder = append(r.s.eventOrder, event.ID)
	r.s.invitees[event.ID] = invitees
	r.s.responses[event.ID] = make(map[string]models.EventResponse)
	r.s.attendance[event.ID] = make(map[string]models.EventAttendance)
	return nil
}

// FindByID returns an event of the class or sql.ErrNoRows.
func (r *EventRepository) FindByID(_ context.Context, classID, id string) (*models.EventItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	event, ok := r.s.events[id]
	if !ok || event.ClassID != classID {
		return nil, sql.ErrNoRows
	}
	return &event, nil
}

// List returns the events of a class ordered by start time.
func (r *EventRepository) List(_ context.Context, classID string) ([]models.EventItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.EventItem, 0)
	for _, id := range r.s.eventOrder {
		if event := r.s.events[id]; event.ClassID == classID {
			out = append(out, event)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

// IsInvitee reports whether the user was invited to the event.
func (r *EventRepository) IsInvitee(_ context.Context, eventID, userID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.invitees[eventID][userID]
	return ok, nil
}

// FindResponse returns the user's current response, or nil when none exists.
func (r *EventRepository) FindResponse(_ context.Context, eventID, userID string) (*models.EventResponse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	resp, ok := r.s.responses[eventID][userID]
	if !ok {
		return nil, nil
	}
	return &resp, nil
}

// ResponsesForUser maps event id to the user's choice for every event of the
// class the user answered.
func (r *EventRepository) ResponsesForUser(_ context.Context, classID, userID string) (map[string]models.ResponseChoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[string]models.ResponseChoice)
	for eventID, event := range r.s.events {
		if event.ClassID != classID {
			continue
		}
		if resp, ok := r.s.responses[eventID][userID]; ok {
			out[eventID] = resp.Choice
		}
	}
	return out, nil
}

// ListNonResponders returns the sorted ids of invitees without a response.
func (r *EventRepository) ListNonResponders(_ context.Context, eventID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]string, 0)
	for userID := range r.s.invitees[eventID] {
		if _, answered := r.s.responses[eventID][userID]; !answered {
			out = append(out, userID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ApplyResponse stores the response and the new counts when the event
// version matches.
func (r *EventRepository) ApplyResponse(_ context.Context, params repository.EventResponseParams) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	event, ok := r.s.events[params.EventID]
	if !ok || event.ClassID != params.ClassID || event.Version != params.ExpectedVersion {
		return sql.ErrNoRows
	}
	event.ResponseCounts = params.Counts
	event.Version++
	event.UpdatedAt = params.UpdatedAt
	r.s.events[event.ID] = event
	r.s.responses[event.ID][params.Response.UserID] = params.Response
	return nil
}

// Close marks the event closed when the version matches.
func (r *EventRepository) Close(_ context.Context, params repository.EventCloseParams) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	event, ok := r.s.events[params.EventID]
	if !ok || event.ClassID != params.ClassID || event.Version != params.ExpectedVersion {
		return sql.ErrNoRows
	}
	event.Closed = true
	event.Version++
	event.UpdatedAt = params.UpdatedAt
	r.s.events[event.ID] = event
	return nil
}

// FindAttendance returns the user's check-in, or nil when none exists.
func (r *EventRepository) FindAttendance(_ context.Context, eventID, userID string) (*models.EventAttendance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	attendance, ok := r.s.attendance[eventID][userID]
	if !ok {
		return nil, nil
	}
	return &attendance, nil
}

// ListAttendance returns the check-ins of an event in arrival order.
func (r *EventRepository) ListAttendance(_ context.Context, eventID string) ([]models.EventAttendance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.EventAttendance, 0, len(r.s.attendance[eventID]))
	for _, attendance := range r.s.attendance[eventID] {
		out = append(out, attendance)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CheckedInAt.Equal(out[j].CheckedInAt) {
			return out[i].CheckedInAt.Before(out[j].CheckedInAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// RecordCheckIn stores the attendance row and raises the tally when the event
// version matches. A second check-in of the same user is rejected like a lost
// race.
func (r *EventRepository) RecordCheckIn(_ context.Context, params repository.EventCheckInParams) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	event, ok := r.s.events[params.EventID]
	if !ok || event.ClassID != params.ClassID || event.Version != params.ExpectedVersion {
		return sql.ErrNoRows
	}
	if _, dup := r.s.attendance[event.ID][params.Attendance.UserID]; dup {
		return sql.ErrNoRows
	}
	event.CheckedIn++
	event.Version++
	event.UpdatedAt = params.Attendance.CheckedInAt
	r.s.events[event.ID] = event
	if r.s.attendance[event.ID] == nil {
		r.s.attendance[event.ID] = make(map[string]models.EventAttendance)
	}
	attendance := params.Attendance
	attendance.EventID = event.ID
	r.s.attendance[event.ID][attendance.UserID] = attendance
	return nil
}
