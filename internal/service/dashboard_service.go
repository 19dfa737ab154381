package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classpal-api/internal/dto"
	"github.com/noah-isme/classpal-api/internal/models"
)

type dashboardDutyReader interface {
	List(ctx context.Context, filter models.DutyFilter) ([]models.Duty, error)
}

type dashboardEventReader interface {
	List(ctx context.Context, classID string) ([]models.EventItem, error)
	IsInvitee(ctx context.Context, eventID, userID string) (bool, error)
	ResponsesForUser(ctx context.Context, classID, userID string) (map[string]models.ResponseChoice, error)
}

type dashboardAuditReader interface {
	ListAudit(ctx context.Context, filter models.AssetAuditFilter) ([]models.AssetAuditEntry, error)
}

type dashboardLedgerReader interface {
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.FundTransaction, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	RecentActivityLimit int
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Duties dashboardDutyReader
	Events dashboardEventReader
	Assets dashboardAuditReader
	Funds  dashboardLedgerReader
	Access *AccessService
	Logger *zap.Logger
	Config DashboardServiceConfig
}

// DashboardService composes the per-actor class overview from the duty, event,
// asset and fund stores.
type DashboardService struct {
	clock
	duties dashboardDutyReader
	events dashboardEventReader
	assets dashboardAuditReader
	funds  dashboardLedgerReader
	access *AccessService
	logger *zap.Logger
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.RecentActivityLimit <= 0 {
		cfg.RecentActivityLimit = 8
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		duties: params.Duties,
		events: params.Events,
		assets: params.Assets,
		funds:  params.Funds,
		access: params.Access,
		logger: logger,
		cfg:    cfg,
	}
}

// Overview returns the actor's pending duties, the open events still awaiting
// the actor's answer and the latest class activity.
func (s *DashboardService) Overview(ctx context.Context, actor models.Actor) (*dto.Dashboard, error) {
	member, err := s.access.Member(ctx, actor)
	if err != nil {
		return nil, err
	}
	now := s.Now()

	pending, err := s.duties.List(ctx, models.DutyFilter{ClassID: actor.ClassID, AssigneeID: actor.UserID, Status: models.DutyStatusPending})
	if err != nil {
		return nil, internalError(err, "failed to list pending duties")
	}
	sort.SliceStable(pending, func(i, j int) bool { return scheduledBefore(pending[i], pending[j]) })

	reviewQueue := 0
	if member.Role.Has(models.CapabilityReviewDuties) {
		waiting, err := s.duties.List(ctx, models.DutyFilter{ClassID: actor.ClassID, Status: models.DutyStatusWaitingApproval})
		if err != nil {
			return nil, internalError(err, "failed to list duties awaiting review")
		}
		reviewQueue = len(waiting)
	}

	openEvents, err := s.openEvents(ctx, actor, now)
	if err != nil {
		return nil, err
	}
	activity, err := s.recentActivity(ctx, actor.ClassID)
	if err != nil {
		return nil, err
	}

	if pending == nil {
		pending = []models.Duty{}
	}
	s.logger.Debug("dashboard composed",
		zap.String("class_id", actor.ClassID),
		zap.String("user_id", actor.UserID),
		zap.Int("pending", len(pending)),
		zap.Int("open_events", len(openEvents)),
	)
	return &dto.Dashboard{
		ClassID:        actor.ClassID,
		GeneratedAt:    now,
		PendingDuties:  pending,
		ReviewQueue:    reviewQueue,
		OpenEvents:     openEvents,
		RecentActivity: activity,
	}, nil
}

func (s *DashboardService) openEvents(ctx context.Context, actor models.Actor, now time.Time) ([]models.EventItem, error) {
	events, err := s.events.List(ctx, actor.ClassID)
	if err != nil {
		return nil, internalError(err, "failed to list events")
	}
	answered, err := s.events.ResponsesForUser(ctx, actor.ClassID, actor.UserID)
	if err != nil {
		return nil, internalError(err, "failed to load responses")
	}
	out := make([]models.EventItem, 0)
	for _, event := range events {
		if !event.AcceptsResponses(now) {
			continue
		}
		if _, ok := answered[event.ID]; ok {
			continue
		}
		invited, err := s.events.IsInvitee(ctx, event.ID, actor.UserID)
		if err != nil {
			return nil, internalError(err, "failed to check invitee")
		}
		if invited {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *DashboardService) recentActivity(ctx context.Context, classID string) ([]dto.ActivityItem, error) {
	limit := s.cfg.RecentActivityLimit
	items := make([]dto.ActivityItem, 0, limit*3)

	approved, err := s.duties.List(ctx, models.DutyFilter{ClassID: classID, Status: models.DutyStatusDone})
	if err != nil {
		return nil, internalError(err, "failed to list approved duties")
	}
	for _, duty := range approved {
		at := duty.UpdatedAt
		if duty.ReviewedAt != nil {
			at = *duty.ReviewedAt
		}
		items = append(items, dto.ActivityItem{
			Kind:     dto.ActivityDuty,
			EntityID: duty.ID,
			Label:    "Duty proof approved",
			Detail:   fmt.Sprintf("%s · +%d pts", duty.Title, duty.Points),
			UserID:   duty.AssigneeID,
			At:       at,
		})
	}

	audit, err := s.assets.ListAudit(ctx, models.AssetAuditFilter{ClassID: classID, Limit: limit})
	if err != nil {
		return nil, internalError(err, "failed to load asset audit log")
	}
	for _, entry := range audit {
		items = append(items, dto.ActivityItem{
			Kind:     dto.ActivityAsset,
			EntityID: entry.AssetID,
			Label:    fmt.Sprintf("%s %s", entry.AssetName, entry.Action),
			Detail:   "Asset board updated",
			UserID:   entry.UserID,
			At:       entry.Timestamp,
		})
	}

	txs, err := s.funds.ListTransactions(ctx, models.TransactionFilter{ClassID: classID})
	if err != nil {
		return nil, internalError(err, "failed to list fund transactions")
	}
	for _, tx := range txs {
		items = append(items, dto.ActivityItem{
			Kind:     dto.ActivityFund,
			EntityID: tx.ID,
			Label:    tx.Description,
			Detail:   fmt.Sprintf("%s · %d VND", tx.Category, tx.Signed()),
			UserID:   tx.RecordedBy,
			At:       tx.CreatedAt,
		})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].At.After(items[j].At) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// scheduledBefore orders duties by schedule with unscheduled duties last.
func scheduledBefore(a, b models.Duty) bool {
	switch {
	case a.ScheduledAt == nil:
		return false
	case b.ScheduledAt == nil:
		return true
	default:
		return a.ScheduledAt.Before(*b.ScheduledAt)
	}
}
