package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classpal-api/internal/models"
)

const eventColumns = `id, class_id, title, description, location, starts_at, signup_ends_at, capacity, closed,
	registered, declined, no_response, total_invitees, checked_in, created_by, version, created_at, updated_at`

// eventRow flattens the response buckets for scanning.
type eventRow struct {
	ID            string     `db:"id"`
	ClassID       string     `db:"class_id"`
	Title         string     `db:"title"`
	Description   string     `db:"description"`
	Location      string     `db:"location"`
	StartsAt      time.Time  `db:"starts_at"`
	SignupEndsAt  *time.Time `db:"signup_ends_at"`
	Capacity      *int       `db:"capacity"`
	Closed        bool       `db:"closed"`
	Registered    int        `db:"registered"`
	Declined      int        `db:"declined"`
	NoResponse    int        `db:"no_response"`
	TotalInvitees int        `db:"total_invitees"`
	CheckedIn     int        `db:"checked_in"`
	CreatedBy     string     `db:"created_by"`
	Version       int64      `db:"version"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

func (r eventRow) toModel() models.EventItem {
	return models.EventItem{
		ID:           r.ID,
		ClassID:      r.ClassID,
		Title:        r.Title,
		Description:  r.Description,
		Location:     r.Location,
		StartsAt:     r.StartsAt,
		SignupEndsAt: r.SignupEndsAt,
		Capacity:     r.Capacity,
		Closed:       r.Closed,
		ResponseCounts: models.ResponseCounts{
			Registered: r.Registered,
			Declined:   r.Declined,
			NoResponse: r.NoResponse,
		},
		TotalInvitees: r.TotalInvitees,
		CheckedIn:     r.CheckedIn,
		CreatedBy:     r.CreatedBy,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// EventRepository persists events, invitees and RSVP responses.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts the event and its invitee list in one transaction.
func (r *EventRepository) Create(ctx context.Context, event *models.EventItem, inviteeIDs []string) (err error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Version == 0 {
		event.Version = 1
	}
	unique := make([]string, 0, len(inviteeIDs))
	seen := make(map[string]struct{}, len(inviteeIDs))
	for _, id := range inviteeIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	event.TotalInvitees = len(unique)
	event.ResponseCounts = models.ResponseCounts{NoResponse: len(unique)}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create event: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertEvent = `INSERT INTO events (` + eventColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	if _, err = tx.ExecContext(ctx, insertEvent,
		event.ID, event.ClassID, event.Title, event.Description, event.Location, event.StartsAt, event.SignupEndsAt,
		event.Capacity, event.Closed, 0, 0, event.TotalInvitees, event.TotalInvitees, 0, event.CreatedBy, event.Version,
		event.CreatedAt, event.UpdatedAt); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	const insertInvitee = `INSERT INTO event_invitees (event_id, user_id) VALUES ($1, $2)`
	for _, userID := range unique {
		if _, err = tx.ExecContext(ctx, insertInvitee, event.ID, userID); err != nil {
			return fmt.Errorf("insert event invitee: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create event: %w", err)
	}
	return nil
}

// FindByID returns an event of the class.
func (r *EventRepository) FindByID(ctx context.Context, classID, id string) (*models.EventItem, error) {
	const query = `SELECT ` + eventColumns + ` FROM events WHERE class_id = $1 AND id = $2`
	var row eventRow
	if err := r.db.GetContext(ctx, &row, query, classID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find event: %w", err)
	}
	event := row.toModel()
	return &event, nil
}

// List returns the events of a class ordered by start time.
func (r *EventRepository) List(ctx context.Context, classID string) ([]models.EventItem, error) {
	const query = `SELECT ` + eventColumns + ` FROM events WHERE class_id = $1 ORDER BY starts_at, created_at`
	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, classID); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events := make([]models.EventItem, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toModel())
	}
	return events, nil
}

// IsInvitee reports whether the user is on the event's invitee list.
func (r *EventRepository) IsInvitee(ctx context.Context, eventID, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM event_invitees WHERE event_id = $1 AND user_id = $2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, eventID, userID); err != nil {
		return false, fmt.Errorf("check event invitee: %w", err)
	}
	return ok, nil
}

// FindResponse returns the user's current response or nil when none exists.
func (r *EventRepository) FindResponse(ctx context.Context, eventID, userID string) (*models.EventResponse, error) {
	const query = `SELECT event_id, user_id, choice, responded_at FROM event_responses WHERE event_id = $1 AND user_id = $2`
	var resp models.EventResponse
	if err := r.db.GetContext(ctx, &resp, query, eventID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find event response: %w", err)
	}
	return &resp, nil
}

// ResponsesForUser maps event id to the user's choice across a class.
func (r *EventRepository) ResponsesForUser(ctx context.Context, classID, userID string) (map[string]models.ResponseChoice, error) {
	const query = `SELECT r.event_id, r.user_id, r.choice, r.responded_at
FROM event_responses r JOIN events e ON e.id = r.event_id
WHERE e.class_id = $1 AND r.user_id = $2`
	var rows []models.EventResponse
	if err := r.db.SelectContext(ctx, &rows, query, classID, userID); err != nil {
		return nil, fmt.Errorf("list user responses: %w", err)
	}
	out := make(map[string]models.ResponseChoice, len(rows))
	for _, row := range rows {
		out[row.EventID] = row.Choice
	}
	return out, nil
}

// ListNonResponders returns invitees that have not answered, sorted by id.
func (r *EventRepository) ListNonResponders(ctx context.Context, eventID string) ([]string, error) {
	const query = `SELECT i.user_id FROM event_invitees i
LEFT JOIN event_responses r ON r.event_id = i.event_id AND r.user_id = i.user_id
WHERE i.event_id = $1 AND r.user_id IS NULL
ORDER BY i.user_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, eventID); err != nil {
		return nil, fmt.Errorf("list non responders: %w", err)
	}
	return ids, nil
}

// ApplyResponse stores the new bucket counts guarded by the expected version
// and upserts the response row in the same transaction.
func (r *EventRepository) ApplyResponse(ctx context.Context, params EventResponseParams) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event response: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const update = `UPDATE events SET registered = $1, declined = $2, no_response = $3, updated_at = $4, version = version + 1
WHERE id = $5 AND class_id = $6 AND version = $7`
	result, err := tx.ExecContext(ctx, update,
		params.Counts.Registered, params.Counts.Declined, params.Counts.NoResponse, params.UpdatedAt,
		params.EventID, params.ClassID, params.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("update event counts: %w", err)
	}
	if err = expectOneRow(result, "event response"); err != nil {
		return err
	}

	const upsert = `INSERT INTO event_responses (event_id, user_id, choice, responded_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (event_id, user_id) DO UPDATE SET choice = EXCLUDED.choice, responded_at = EXCLUDED.responded_at`
	resp := params.Response
	if _, err = tx.ExecContext(ctx, upsert, params.EventID, resp.UserID, resp.Choice, resp.RespondedAt); err != nil {
		return fmt.Errorf("upsert event response: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit event response: %w", err)
	}
	return nil
}

// Close marks the event closed guarded by the expected version.
func (r *EventRepository) Close(ctx context.Context, params EventCloseParams) error {
	const query = `UPDATE events SET closed = TRUE, updated_at = $1, version = version + 1
WHERE id = $2 AND class_id = $3 AND version = $4`
	result, err := r.db.ExecContext(ctx, query, params.UpdatedAt, params.EventID, params.ClassID, params.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("close event: %w", err)
	}
	return expectOneRow(result, "close event")
}

// FindAttendance returns the user's check-in or nil when none exists.
func (r *EventRepository) FindAttendance(ctx context.Context, eventID, userID string) (*models.EventAttendance, error) {
	const query = `SELECT event_id, user_id, checked_in_at FROM event_attendance WHERE event_id = $1 AND user_id = $2`
	var attendance models.EventAttendance
	if err := r.db.GetContext(ctx, &attendance, query, eventID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find event attendance: %w", err)
	}
	return &attendance, nil
}

// ListAttendance returns the check-ins of an event in arrival order.
func (r *EventRepository) ListAttendance(ctx context.Context, eventID string) ([]models.EventAttendance, error) {
	const query = `SELECT event_id, user_id, checked_in_at FROM event_attendance WHERE event_id = $1 ORDER BY checked_in_at, user_id`
	var rows []models.EventAttendance
	if err := r.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		return nil, fmt.Errorf("list event attendance: %w", err)
	}
	return rows, nil
}

// RecordCheckIn raises the check-in tally guarded by the expected version and
// inserts the attendance row in the same transaction.
func (r *EventRepository) RecordCheckIn(ctx context.Context, params EventCheckInParams) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event check-in: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	attendance := params.Attendance
	const update = `UPDATE events SET checked_in = checked_in + 1, updated_at = $1, version = version + 1
WHERE id = $2 AND class_id = $3 AND version = $4`
	result, err := tx.ExecContext(ctx, update, attendance.CheckedInAt, params.EventID, params.ClassID, params.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("update event check-in tally: %w", err)
	}
	if err = expectOneRow(result, "event check-in"); err != nil {
		return err
	}

	const insert = `INSERT INTO event_attendance (event_id, user_id, checked_in_at) VALUES ($1, $2, $3)`
	if _, err = tx.ExecContext(ctx, insert, params.EventID, attendance.UserID, attendance.CheckedInAt); err != nil {
		return fmt.Errorf("insert event attendance: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit event check-in: %w", err)
	}
	return nil
}
