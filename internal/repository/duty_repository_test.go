package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classpal-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var dutyColumnNames = []string{"id", "class_id", "title", "description", "scheduled_at", "assignee_id", "status", "points",
	"proof_path", "submitted_at", "reviewed_by", "reviewed_at", "created_by", "version", "created_at", "updated_at"}

func TestDutyRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDutyRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO duties")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	duty := &models.Duty{ClassID: "cs101", Title: "Clean Whiteboard", AssigneeID: "u1", Status: models.DutyStatusPending, Points: 12}
	require.NoError(t, repo.Create(context.Background(), duty))
	require.NotEmpty(t, duty.ID)
	assert.EqualValues(t, 1, duty.Version)

	now := time.Now()
	rows := sqlmock.NewRows(dutyColumnNames).
		AddRow(duty.ID, "cs101", "Clean Whiteboard", "", nil, "u1", "pending", 12, nil, nil, nil, nil, "u9", 1, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, class_id, title")).
		WithArgs("cs101", duty.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), "cs101", duty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DutyStatusPending, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDutyRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDutyRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM duties WHERE class_id = $1 AND assignee_id = $2 AND status = $3")).
		WithArgs("cs101", "u1", models.DutyStatusWaitingApproval).
		WillReturnRows(sqlmock.NewRows(dutyColumnNames).
			AddRow("d1", "cs101", "Arrange seating", "", nil, "u1", "waiting_approval", 15, "cs101/proof/a.jpg", now, nil, nil, "u9", 2, now, now))

	duties, err := repo.List(context.Background(), models.DutyFilter{ClassID: "cs101", AssigneeID: "u1", Status: models.DutyStatusWaitingApproval})
	require.NoError(t, err)
	require.Len(t, duties, 1)
	require.NotNil(t, duties[0].ProofPath)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDutyRepositoryTransitionCreditsPoints(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDutyRepository(db)

	now := time.Now()
	reviewer := "u9"
	duty := &models.Duty{ID: "d1", ClassID: "cs101", Status: models.DutyStatusDone, ReviewedBy: &reviewer, ReviewedAt: &now, UpdatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE duties SET status = $1")).
		WithArgs(models.DutyStatusDone, nil, nil, &reviewer, &now, now, "d1", "cs101", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO point_ledger")).
		WithArgs("cs101", "u1", 15, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Transition(context.Background(), DutyTransitionParams{
		Duty:            duty,
		ExpectedVersion: 2,
		Credit:          &models.PointCredit{ClassID: "cs101", UserID: "u1", Points: 15, At: now},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, duty.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDutyRepositoryTransitionVersionMismatch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDutyRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE duties SET status = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Transition(context.Background(), DutyTransitionParams{
		Duty:            &models.Duty{ID: "d1", ClassID: "cs101", Status: models.DutyStatusWaitingApproval},
		ExpectedVersion: 1,
		Credit:          &models.PointCredit{ClassID: "cs101", UserID: "u1", Points: 15},
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDutyRepositoryLeaderboard(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDutyRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM point_ledger p LEFT JOIN users u")).
		WithArgs("cs101").
		WillReturnRows(sqlmock.NewRows([]string{"class_id", "user_id", "display_name", "points", "reached_at"}).
			AddRow("cs101", "u2", "Sarah Lee", 450, now).
			AddRow("cs101", "u1", "John Smith", 380, now))

	board, err := repo.Leaderboard(context.Background(), "cs101")
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "Sarah Lee", board[0].DisplayName)
	require.NoError(t, mock.ExpectationsWereMet())
}
