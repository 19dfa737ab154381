package memory

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classpal-api/internal/models"
	"github.com/noah-isme/classpal-api/internal/repository"
)

func TestDutyTransitionRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	store := New()
	duties := store.Duties()

	duty := &models.Duty{ClassID: "c1", Title: "Sweep", AssigneeID: "u1", Status: models.DutyStatusPending, Points: 5}
	require.NoError(t, duties.Create(ctx, duty))
	require.NotEmpty(t, duty.ID)
	require.EqualValues(t, 1, duty.Version)

	next := *duty
	next.Status = models.DutyStatusWaitingApproval
	require.NoError(t, duties.Transition(ctx, repository.DutyTransitionParams{Duty: &next, ExpectedVersion: 1}))
	assert.EqualValues(t, 2, next.Version)

	stale := *duty
	stale.Status = models.DutyStatusDone
	err := duties.Transition(ctx, repository.DutyTransitionParams{Duty: &stale, ExpectedVersion: 1})
	require.ErrorIs(t, err, sql.ErrNoRows)

	stored, err := duties.FindByID(ctx, "c1", duty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DutyStatusWaitingApproval, stored.Status)

	_, err = duties.FindByID(ctx, "other-class", duty.ID)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDutyCreditAccumulatesAndOrdersLeaderboard(t *testing.T) {
	ctx := context.Background()
	store := New()
	store.PutUser(models.User{ID: "u1", DisplayName: "Ann"})
	store.PutUser(models.User{ID: "u2", DisplayName: "Ben"})
	duties := store.Duties()
	base := time.Date(2024, 11, 1, 8, 0, 0, 0, time.UTC)

	credit := func(userID string, points int, at time.Time) {
		duty := &models.Duty{ClassID: "c1", AssigneeID: userID, Status: models.DutyStatusWaitingApproval, Points: points}
		require.NoError(t, duties.Create(ctx, duty))
		next := *duty
		next.Status = models.DutyStatusDone
		require.NoError(t, duties.Transition(ctx, repository.DutyTransitionParams{
			Duty:            &next,
			ExpectedVersion: duty.Version,
			Credit:          &models.PointCredit{ClassID: "c1", UserID: userID, Points: points, At: at},
		}))
	}

	credit("u2", 10, base)
	credit("u1", 4, base.Add(time.Minute))
	credit("u1", 6, base.Add(2*time.Minute))

	board, err := duties.Leaderboard(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "u2", board[0].UserID)
	assert.Equal(t, "Ben", board[0].DisplayName)
	assert.Equal(t, 10, board[1].Points)
	assert.Equal(t, base.Add(2*time.Minute), board[1].ReachedAt)
}

func TestAssetTransitionAppendsAuditNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := New()
	assets := store.Assets()
	asset := &models.Asset{ClassID: "c1", Name: "Key", Status: models.AssetStatusAvailable}
	require.NoError(t, assets.Create(ctx, asset))

	now := time.Date(2024, 11, 1, 8, 0, 0, 0, time.UTC)
	holder := "u1"
	borrowed := *asset
	borrowed.Status = models.AssetStatusInUse
	borrowed.HolderID = &holder
	require.NoError(t, assets.Transition(ctx, repository.AssetTransitionParams{
		Asset:           &borrowed,
		ExpectedVersion: 1,
		Entry:           &models.AssetAuditEntry{ClassID: "c1", AssetID: asset.ID, Action: models.AssetActionBorrowed, UserID: holder, Timestamp: now},
	}))

	returned := borrowed
	returned.Status = models.AssetStatusAvailable
	returned.HolderID = nil
	require.NoError(t, assets.Transition(ctx, repository.AssetTransitionParams{
		Asset:           &returned,
		ExpectedVersion: 2,
		Entry:           &models.AssetAuditEntry{ClassID: "c1", AssetID: asset.ID, Action: models.AssetActionReturned, UserID: holder, Timestamp: now},
	}))

	err := assets.Transition(ctx, repository.AssetTransitionParams{
		Asset:           &borrowed,
		ExpectedVersion: 2,
		Entry:           &models.AssetAuditEntry{ClassID: "c1", AssetID: asset.ID, Action: models.AssetActionBorrowed, UserID: "u2", Timestamp: now},
	})
	require.ErrorIs(t, err, sql.ErrNoRows)

	log, err := assets.ListAudit(ctx, models.AssetAuditFilter{ClassID: "c1", AssetID: asset.ID})
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, models.AssetActionReturned, log[0].Action)
	assert.Equal(t, models.AssetActionBorrowed, log[1].Action)
	assert.Greater(t, log[0].Seq, log[1].Seq)
}

func TestEventResponsesAndNonResponders(t *testing.T) {
	ctx := context.Background()
	store := New()
	events := store.Events()
	event := &models.EventItem{ClassID: "c1", Title: "Party", StartsAt: time.Now()}
	require.NoError(t, events.Create(ctx, event, []string{"u3", "u1", "u2", "u1"}))
	assert.Equal(t, 3, event.TotalInvitees)
	assert.Equal(t, models.ResponseCounts{NoResponse: 3}, event.ResponseCounts)

	ok, err := events.IsInvitee(ctx, event.ID, "u2")
	require.NoError(t, err)
	assert.True(t, ok)

	resp, err := events.FindResponse(ctx, event.ID, "u2")
	require.NoError(t, err)
	assert.Nil(t, resp)

	counts, moved := event.ResponseCounts.Move(nil, models.ResponseRegistered)
	require.True(t, moved)
	require.NoError(t, events.ApplyResponse(ctx, repository.EventResponseParams{
		EventID:         event.ID,
		ClassID:         "c1",
		ExpectedVersion: 1,
		Counts:          counts,
		Response:        models.EventResponse{EventID: event.ID, UserID: "u2", Choice: models.ResponseRegistered},
	}))
	err = events.ApplyResponse(ctx, repository.EventResponseParams{EventID: event.ID, ClassID: "c1", ExpectedVersion: 1, Counts: counts})
	require.ErrorIs(t, err, sql.ErrNoRows)

	pending, err := events.ListNonResponders(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u3"}, pending)

	mine, err := events.ResponsesForUser(ctx, "c1", "u2")
	require.NoError(t, err)
	assert.Equal(t, models.ResponseRegistered, mine[event.ID])

	require.NoError(t, events.Close(ctx, repository.EventCloseParams{EventID: event.ID, ClassID: "c1", ExpectedVersion: 2}))
	stored, err := events.FindByID(ctx, "c1", event.ID)
	require.NoError(t, err)
	assert.True(t, stored.Closed)
	assert.Equal(t, 1, stored.ResponseCounts.Registered)
}

func TestEventCheckInCountsOncePerUser(t *testing.T) {
	ctx := context.Background()
	store := New()
	events := store.Events()
	event := &models.EventItem{ClassID: "c1", Title: "Party", StartsAt: time.Now()}
	require.NoError(t, events.Create(ctx, event, []string{"u1", "u2"}))

	at := time.Date(2024, 5, 6, 18, 0, 0, 0, time.UTC)
	require.NoError(t, events.RecordCheckIn(ctx, repository.EventCheckInParams{
		EventID:         event.ID,
		ClassID:         "c1",
		ExpectedVersion: 1,
		Attendance:      models.EventAttendance{UserID: "u2", CheckedInAt: at},
	}))
	err := events.RecordCheckIn(ctx, repository.EventCheckInParams{
		EventID:         event.ID,
		ClassID:         "c1",
		ExpectedVersion: 2,
		Attendance:      models.EventAttendance{UserID: "u2", CheckedInAt: at.Add(time.Minute)},
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	err = events.RecordCheckIn(ctx, repository.EventCheckInParams{
		EventID:         event.ID,
		ClassID:         "c1",
		ExpectedVersion: 1,
		Attendance:      models.EventAttendance{UserID: "u1", CheckedInAt: at},
	})
	require.ErrorIs(t, err, sql.ErrNoRows)

	stored, err := events.FindByID(ctx, "c1", event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CheckedIn)
	assert.Equal(t, int64(2), stored.Version)

	found, err := events.FindAttendance(ctx, event.ID, "u2")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, at, found.CheckedInAt)
	missing, err := events.FindAttendance(ctx, event.ID, "u1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	rows, err := events.ListAttendance(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "u2", rows[0].UserID)
}

func TestFundLedgerOrderingAndDebtSettlement(t *testing.T) {
	ctx := context.Background()
	store := New()
	funds := store.Funds()
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, funds.AppendTransaction(ctx, &models.FundTransaction{ClassID: "c1", Type: models.TransactionExpense, Amount: 300, Date: jan.AddDate(0, 0, 1)}))
	require.NoError(t, funds.AppendTransaction(ctx, &models.FundTransaction{ClassID: "c1", Type: models.TransactionIncome, Amount: 1000, Date: jan}))
	require.NoError(t, funds.AppendTransaction(ctx, &models.FundTransaction{ClassID: "c1", Type: models.TransactionIncome, Amount: 50, Date: jan}))
	require.NoError(t, funds.AppendTransaction(ctx, &models.FundTransaction{ClassID: "c2", Type: models.TransactionIncome, Amount: 9, Date: jan}))

	txs, err := funds.ListTransactions(ctx, models.TransactionFilter{ClassID: "c1"})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.EqualValues(t, 1000, txs[0].Amount)
	assert.EqualValues(t, 50, txs[1].Amount)
	assert.EqualValues(t, 300, txs[2].Amount)

	totals, err := funds.Totals(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.LedgerTotals{TotalIncome: 1050, TotalExpense: 300, TransactionCount: 3}, totals)

	debt := &models.DebtEntry{ClassID: "c1", StudentID: "u1", AmountDue: 500, DueDate: jan}
	require.NoError(t, funds.CreateDebt(ctx, debt))
	params := repository.DebtSettleParams{DebtID: debt.ID, ClassID: "c1", ExpectedVersion: 1, SettledAt: jan, SettledBy: "u9"}
	require.NoError(t, funds.SettleDebt(ctx, params))
	require.ErrorIs(t, funds.SettleDebt(ctx, params), sql.ErrNoRows)

	stored, err := funds.FindDebt(ctx, "c1", debt.ID)
	require.NoError(t, err)
	assert.True(t, stored.Settled())
	assert.Equal(t, "u9", *stored.SettledBy)
}

func TestSeedDemoIsConsistent(t *testing.T) {
	ctx := context.Background()
	store := New()
	store.SeedDemo(time.Date(2024, 11, 25, 9, 0, 0, 0, time.UTC))

	classes, err := store.Classes().ListForUser(ctx, DemoUserID)
	require.NoError(t, err)
	assert.Len(t, classes, 2)

	member, err := store.Classes().FindMember(ctx, DemoClassID, DemoMonitorID)
	require.NoError(t, err)
	assert.Equal(t, models.ClassRoleMonitor, member.Role)
	assert.Equal(t, "Sarah Lee", member.DisplayName)

	events, err := store.Events().List(ctx, DemoClassID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, e.TotalInvitees, e.ResponseCounts.Total(), e.Title)
	}

	assets, err := store.Assets().List(ctx, DemoClassID)
	require.NoError(t, err)
	require.Len(t, assets, 6)
	for _, a := range assets {
		assert.Equal(t, a.Status == models.AssetStatusInUse, a.HolderID != nil, a.Name)
		log, err := store.Assets().ListAudit(ctx, models.AssetAuditFilter{ClassID: DemoClassID, AssetID: a.ID})
		require.NoError(t, err)
		for i := len(log) - 1; i >= 0; i-- {
			want := models.AssetActionBorrowed
			if (len(log)-1-i)%2 == 1 {
				want = models.AssetActionReturned
			}
			assert.Equal(t, want, log[i].Action, a.Name)
		}
	}

	totals, err := store.Funds().Totals(ctx, DemoClassID)
	require.NoError(t, err)
	assert.EqualValues(t, 3000000, totals.TotalIncome)
	assert.EqualValues(t, 1250000, totals.TotalExpense)

	board, err := store.Duties().Leaderboard(ctx, DemoClassID)
	require.NoError(t, err)
	require.NotEmpty(t, board)
	assert.Equal(t, "Sarah Lee", board[0].DisplayName)
}
