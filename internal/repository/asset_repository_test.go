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

func TestAssetRepositoryTransitionAppendsAudit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssetRepository(db)

	now := time.Now()
	holder := "u1"
	asset := &models.Asset{ID: "a1", ClassID: "cs101", Name: "Classroom Key", Status: models.AssetStatusInUse, HolderID: &holder, HeldSince: &now, UpdatedAt: now}
	entry := &models.AssetAuditEntry{ClassID: "cs101", AssetID: "a1", AssetName: "Classroom Key", Action: models.AssetActionBorrowed, UserID: holder, Timestamp: now}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assets SET status = $1")).
		WithArgs(models.AssetStatusInUse, &holder, &now, now, "a1", "cs101", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO asset_audit_log")).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(42))
	mock.ExpectCommit()

	require.NoError(t, repo.Transition(context.Background(), AssetTransitionParams{Asset: asset, ExpectedVersion: 3, Entry: entry}))
	assert.EqualValues(t, 42, entry.Seq)
	assert.NotEmpty(t, entry.ID)
	assert.EqualValues(t, 4, asset.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepositoryTransitionLostRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssetRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assets SET status = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Transition(context.Background(), AssetTransitionParams{
		Asset:           &models.Asset{ID: "a1", ClassID: "cs101", Status: models.AssetStatusInUse},
		ExpectedVersion: 1,
		Entry:           &models.AssetAuditEntry{AssetID: "a1"},
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepositoryListAuditNewestFirst(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssetRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM asset_audit_log WHERE class_id = $1 AND asset_id = $2 ORDER BY "timestamp" DESC, seq DESC LIMIT 10`)).
		WithArgs("cs101", "a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "seq", "class_id", "asset_id", "asset_name", "action", "user_id", "timestamp"}).
			AddRow("l2", 2, "cs101", "a1", "Classroom Key", "returned", "u1", now).
			AddRow("l1", 1, "cs101", "a1", "Classroom Key", "borrowed", "u1", now.Add(-time.Hour)))

	entries, err := repo.ListAudit(context.Background(), models.AssetAuditFilter{ClassID: "cs101", AssetID: "a1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.AssetActionReturned, entries[0].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepositoryLatestReturns(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssetRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT ON (asset_id)`)).
		WithArgs("cs101", models.AssetActionReturned).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seq", "class_id", "asset_id", "asset_name", "action", "user_id", "timestamp"}).
			AddRow("l4", 4, "cs101", "a1", "Classroom Key", "returned", "u2", now).
			AddRow("l2", 2, "cs101", "a2", "HDMI Cable", "returned", "u1", now.Add(-time.Hour)))

	entries, err := repo.LatestReturns(context.Background(), "cs101")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "u2", entries[0].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}
