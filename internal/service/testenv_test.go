package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classpal-api/internal/models"
	"github.com/noah-isme/classpal-api/internal/repository/memory"
	"github.com/noah-isme/classpal-api/pkg/storage"
)

const testClassID = "c1"

var testNow = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

// testEnv wires every service to one in-memory store holding a small class:
// two students, a monitor, a treasurer and an advisor, plus an outsider.
type testEnv struct {
	store       *memory.Store
	metrics     *MetricsService
	access      *AccessService
	classes     *ClassService
	duties      *DutyService
	events      *EventService
	assets      *AssetService
	funds       *FundService
	dashboard   *DashboardService
	attachments *AttachmentService
	reminders   *stubDispatcher
}

type stubDispatcher struct {
	calls   int
	userIDs []string
}

func (d *stubDispatcher) Dispatch(_ context.Context, _ models.EventItem, userIDs []string) (int, error) {
	d.calls++
	d.userIDs = append(d.userIDs, userIDs...)
	return len(userIDs), nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	store.PutClass(models.ClassSummary{ID: testClassID, Name: "Class One"})
	store.PutClass(models.ClassSummary{ID: "c2", Name: "Class Two"})
	for _, m := range []struct {
		id, name string
		role     models.ClassRole
	}{
		{"u1", "Student One", models.ClassRoleStudent},
		{"u2", "Student Two", models.ClassRoleStudent},
		{"u3", "Student Three", models.ClassRoleStudent},
		{"mon", "Monitor", models.ClassRoleMonitor},
		{"tre", "Treasurer", models.ClassRoleTreasurer},
		{"adv", "Advisor", models.ClassRoleAdvisor},
	} {
		store.PutUser(models.User{ID: m.id, DisplayName: m.name, Role: models.RoleStudent})
		store.PutMember(models.ClassMember{ClassID: testClassID, UserID: m.id, Role: m.role, JoinedAt: testNow})
	}
	store.PutUser(models.User{ID: "out", DisplayName: "Outsider", Role: models.RoleStudent})
	store.PutMember(models.ClassMember{ClassID: "c2", UserID: "out", Role: models.ClassRoleMonitor, JoinedAt: testNow})
	store.PutUser(models.User{ID: "root", DisplayName: "Admin", Role: models.RoleAdmin})

	logger := zap.NewNop()
	validate := validator.New()
	metrics := NewMetricsService()
	access := NewAccessService(store.Classes(), logger)

	local, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}
	attachments := NewAttachmentService(local, storage.NewSignedURLSigner("secret", time.Hour), access, logger, AttachmentServiceConfig{MaxFileSize: 1024})

	dispatcher := &stubDispatcher{}
	env := &testEnv{
		store:       store,
		metrics:     metrics,
		access:      access,
		classes:     NewClassService(store.Users(), store.Classes(), access, logger),
		duties:      NewDutyService(store.Duties(), access, attachments, nil, metrics, validate, logger),
		events:      NewEventService(store.Events(), store.Classes(), access, dispatcher, storage.NewSignedURLSigner("checkin-secret", 10*time.Minute), metrics, validate, logger),
		assets:      NewAssetService(store.Assets(), access, metrics, validate, logger),
		funds:       NewFundService(store.Funds(), access, attachments, nil, metrics, validate, logger, FundServiceConfig{RequireReceipt: true}),
		dashboard: NewDashboardService(DashboardServiceParams{
			Duties: store.Duties(),
			Events: store.Events(),
			Assets: store.Assets(),
			Funds:  store.Funds(),
			Access: access,
			Logger: logger,
		}),
		attachments: attachments,
		reminders:   dispatcher,
	}
	fixed := func() time.Time { return testNow }
	env.duties.SetClock(fixed)
	env.events.SetClock(fixed)
	env.assets.SetClock(fixed)
	env.funds.SetClock(fixed)
	env.dashboard.SetClock(fixed)
	return env
}

func actor(userID string) models.Actor {
	return models.Actor{UserID: userID, ClassID: testClassID, Role: models.RoleStudent}
}
