package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classpal-api/internal/models"
)

var eventColumnNames = []string{"id", "class_id", "title", "description", "location", "starts_at", "signup_ends_at", "capacity",
	"closed", "registered", "declined", "no_response", "total_invitees", "checked_in", "created_by", "version", "created_at", "updated_at"}

func TestEventRepositoryCreateInsertsInvitees(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_invitees")).
		WithArgs(sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_invitees")).
		WithArgs(sqlmock.AnyArg(), "u2").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	event := &models.EventItem{ClassID: "cs101", Title: "Class Party", StartsAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), event, []string{"u1", "u2", "u1"}))
	assert.Equal(t, 2, event.TotalInvitees)
	assert.Equal(t, models.ResponseCounts{NoResponse: 2}, event.ResponseCounts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryFindMapsCounts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, class_id, title")).
		WithArgs("cs101", "e1").
		WillReturnRows(sqlmock.NewRows(eventColumnNames).
			AddRow("e1", "cs101", "Class Party", "", "Cafeteria", now, nil, 20, false, 18, 3, 9, 30, 12, "u9", 4, now, now))

	event, err := repo.FindByID(context.Background(), "cs101", "e1")
	require.NoError(t, err)
	assert.Equal(t, models.ResponseCounts{Registered: 18, Declined: 3, NoResponse: 9}, event.ResponseCounts)
	require.NotNil(t, event.Capacity)
	assert.Equal(t, 20, *event.Capacity)
	assert.Equal(t, 12, event.CheckedIn)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryFindResponseNone(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM event_responses WHERE event_id = $1")).
		WithArgs("e1", "u1").
		WillReturnError(sql.ErrNoRows)

	resp, err := repo.FindResponse(context.Background(), "e1", "u1")
	require.NoError(t, err)
	assert.Nil(t, resp)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryApplyResponse(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET registered = $1")).
		WithArgs(19, 3, 8, now, "e1", "cs101", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_responses")).
		WithArgs("e1", "u1", models.ResponseRegistered, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ApplyResponse(context.Background(), EventResponseParams{
		EventID:         "e1",
		ClassID:         "cs101",
		ExpectedVersion: 4,
		Counts:          models.ResponseCounts{Registered: 19, Declined: 3, NoResponse: 8},
		Response:        models.EventResponse{EventID: "e1", UserID: "u1", Choice: models.ResponseRegistered, RespondedAt: now},
		UpdatedAt:       now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryApplyResponseConflictRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET registered = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ApplyResponse(context.Background(), EventResponseParams{EventID: "e1", ClassID: "cs101", ExpectedVersion: 1})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryListNonResponders(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT i.user_id FROM event_invitees i")).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u2").AddRow("u3"))

	ids, err := repo.ListNonResponders(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u3"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryRecordCheckIn(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET checked_in = checked_in + 1")).
		WithArgs(now, "e1", "cs101", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_attendance")).
		WithArgs("e1", "u1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.RecordCheckIn(context.Background(), EventCheckInParams{
		EventID:         "e1",
		ClassID:         "cs101",
		ExpectedVersion: 5,
		Attendance:      models.EventAttendance{EventID: "e1", UserID: "u1", CheckedInAt: now},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryRecordCheckInLostRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET checked_in = checked_in + 1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.RecordCheckIn(context.Background(), EventCheckInParams{EventID: "e1", ClassID: "cs101", ExpectedVersion: 1})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryListAttendance(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM event_attendance WHERE event_id = $1 ORDER BY checked_in_at")).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "user_id", "checked_in_at"}).
			AddRow("e1", "u2", now).
			AddRow("e1", "u1", now.Add(time.Minute)))

	rows, err := repo.ListAttendance(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "u2", rows[0].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}
