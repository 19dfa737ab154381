package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classpal-api/internal/dto"
	"github.com/noah-isme/classpal-api/internal/models"
	"github.com/noah-isme/classpal-api/internal/repository"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
)

type dutyStore interface {
	Create(ctx context.Context, duty *models.Duty) error
	FindByID(ctx context.Context, classID, id string) (*models.Duty, error)
	List(ctx context.Context, filter models.DutyFilter) ([]models.Duty, error)
	Transition(ctx context.Context, params repository.DutyTransitionParams) error
	Leaderboard(ctx context.Context, classID string) ([]models.PointBalance, error)
}

type attachmentChecker interface {
	CheckPath(classID string, kind models.AttachmentKind, path string) error
}

// DutyService runs the duty state machine: pending, waiting_approval, done.
type DutyService struct {
	clock
	store       dutyStore
	access      *AccessService
	attachments attachmentChecker
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewDutyService constructs a DutyService. attachments, cache and metrics may be nil.
func NewDutyService(store dutyStore, access *AccessService, attachments attachmentChecker, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *DutyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DutyService{
		store:       store,
		access:      access,
		attachments: attachments,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Create assigns a new pending duty to a class member.
func (s *DutyService) Create(ctx context.Context, actor models.Actor, req dto.CreateDutyRequest) (*models.Duty, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid duty payload")
	}
	if _, err := s.access.Require(ctx, actor, models.CapabilityManageDuties); err != nil {
		return nil, err
	}
	if _, err := s.access.EnsureMember(ctx, actor.ClassID, req.AssigneeID); err != nil {
		return nil, err
	}

	now := s.Now()
	duty := &models.Duty{
		ClassID:     actor.ClassID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		ScheduledAt: req.ScheduledAt,
		AssigneeID:  req.AssigneeID,
		Status:      models.DutyStatusPending,
		Points:      req.Points,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, duty); err != nil {
		return nil, internalError(err, "failed to create duty")
	}
	s.logger.Info("duty created",
		zap.String("duty_id", duty.ID),
		zap.String("class_id", duty.ClassID),
		zap.String("assignee_id", duty.AssigneeID),
	)
	return duty, nil
}

// List returns the class duties, optionally only the actor's own.
func (s *DutyService) List(ctx context.Context, actor models.Actor, query dto.DutyQuery) ([]models.Duty, error) {
	if _, err := s.access.Member(ctx, actor); err != nil {
		return nil, err
	}
	filter := models.DutyFilter{ClassID: actor.ClassID, AssigneeID: query.AssigneeID}
	if query.Mine {
		filter.AssigneeID = actor.UserID
	}
	if query.Status != "" {
		status := models.DutyStatus(strings.ToLower(query.Status))
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown duty status "+query.Status)
		}
		filter.Status = status
	}
	duties, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list duties")
	}
	if duties == nil {
		duties = []models.Duty{}
	}
	return duties, nil
}

// SubmitProof moves a pending duty to waiting_approval. Only the assignee may
// submit.
func (s *DutyService) SubmitProof(ctx context.Context, actor models.Actor, dutyID string, req dto.SubmitProofRequest) (result *models.Duty, err error) {
	defer func() { s.metrics.ObserveCommand("duty.submit_proof", err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid proof payload")
	}
	if _, err := s.access.Member(ctx, actor); err != nil {
		return nil, err
	}
	proofPath := strings.TrimSpace(req.ProofPath)
	if proofPath != "" && s.attachments != nil {
		if err := s.attachments.CheckPath(actor.ClassID, models.AttachmentProof, proofPath); err != nil {
			return nil, err
		}
	}

	err = retryOnConflict(ctx, dutyID, func() error {
		duty, err := s.load(ctx, actor.ClassID, dutyID)
		if err != nil {
			return err
		}
		if duty.AssigneeID != actor.UserID {
			return appErrors.ForEntity(appErrors.ErrNotAssignee, dutyID)
		}
		if duty.Status != models.DutyStatusPending {
			return appErrors.ForEntity(appErrors.Clone(appErrors.ErrInvalidState, "duty is not pending"), dutyID)
		}

		now := s.Now()
		next := *duty
		next.Status = models.DutyStatusWaitingApproval
		next.SubmittedAt = &now
		next.ProofPath = nil
		if proofPath != "" {
			next.ProofPath = &proofPath
		}
		next.UpdatedAt = now
		if err := commitError(s.store.Transition(ctx, repository.DutyTransitionParams{Duty: &next, ExpectedVersion: duty.Version}), "failed to submit proof"); err != nil {
			return err
		}
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("duty proof submitted", zap.String("duty_id", dutyID), zap.String("user_id", actor.UserID))
	return result, nil
}

// Approve completes a waiting duty and credits its points to the assignee in
// the same commit.
func (s *DutyService) Approve(ctx context.Context, actor models.Actor, dutyID string) (result *models.Duty, err error) {
	defer func() { s.metrics.ObserveCommand("duty.approve", err) }()

	if _, err := s.access.Require(ctx, actor, models.CapabilityReviewDuties); err != nil {
		return nil, err
	}

	err = retryOnConflict(ctx, dutyID, func() error {
		duty, err := s.load(ctx, actor.ClassID, dutyID)
		if err != nil {
			return err
		}
		if duty.Status != models.DutyStatusWaitingApproval {
			return appErrors.ForEntity(appErrors.Clone(appErrors.ErrInvalidState, "duty is not waiting for approval"), dutyID)
		}

		now := s.Now()
		next := *duty
		next.Status = models.DutyStatusDone
		next.ReviewedBy = ptr(actor.UserID)
		next.ReviewedAt = &now
		next.UpdatedAt = now
		params := repository.DutyTransitionParams{Duty: &next, ExpectedVersion: duty.Version}
		if duty.Points > 0 {
			params.Credit = &models.PointCredit{ClassID: duty.ClassID, UserID: duty.AssigneeID, Points: duty.Points, At: now}
		}
		if err := commitError(s.store.Transition(ctx, params), "failed to approve duty"); err != nil {
			return err
		}
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = s.cache.Bump(ctx, dutyScope(actor.ClassID), leaderboardPattern(actor.ClassID))
	s.logger.Info("duty approved",
		zap.String("duty_id", dutyID),
		zap.String("reviewer_id", actor.UserID),
		zap.String("assignee_id", result.AssigneeID),
		zap.Int("points", result.Points),
	)
	return result, nil
}

// Reject sends a waiting duty back to pending and clears its proof.
func (s *DutyService) Reject(ctx context.Context, actor models.Actor, dutyID string) (result *models.Duty, err error) {
	defer func() { s.metrics.ObserveCommand("duty.reject", err) }()

	if _, err := s.access.Require(ctx, actor, models.CapabilityReviewDuties); err != nil {
		return nil, err
	}

	err = retryOnConflict(ctx, dutyID, func() error {
		duty, err := s.load(ctx, actor.ClassID, dutyID)
		if err != nil {
			return err
		}
		if duty.Status != models.DutyStatusWaitingApproval {
			return appErrors.ForEntity(appErrors.Clone(appErrors.ErrInvalidState, "duty is not waiting for approval"), dutyID)
		}

		now := s.Now()
		next := *duty
		next.Status = models.DutyStatusPending
		next.ProofPath = nil
		next.SubmittedAt = nil
		next.ReviewedBy = ptr(actor.UserID)
		next.ReviewedAt = &now
		next.UpdatedAt = now
		if err := commitError(s.store.Transition(ctx, repository.DutyTransitionParams{Duty: &next, ExpectedVersion: duty.Version}), "failed to reject duty"); err != nil {
			return err
		}
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("duty rejected", zap.String("duty_id", dutyID), zap.String("reviewer_id", actor.UserID))
	return result, nil
}

// Leaderboard ranks class members by accumulated duty points.
func (s *DutyService) Leaderboard(ctx context.Context, actor models.Actor) ([]models.LeaderboardEntry, error) {
	if _, err := s.access.Member(ctx, actor); err != nil {
		return nil, err
	}

	key, cacheable := s.cache.ScopedKey(ctx, dutyScope(actor.ClassID), leaderboardKey(actor.ClassID))
	if cacheable {
		var cached []models.LeaderboardEntry
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	balances, err := s.store.Leaderboard(ctx, actor.ClassID)
	if err != nil {
		return nil, internalError(err, "failed to load leaderboard")
	}
	entries := make([]models.LeaderboardEntry, 0, len(balances))
	for i, balance := range balances {
		entries = append(entries, models.LeaderboardEntry{Rank: i + 1, PointBalance: balance})
	}
	if cacheable {
		_ = s.cache.Set(ctx, key, entries, 0)
	}
	return entries, nil
}

func (s *DutyService) load(ctx context.Context, classID, dutyID string) (*models.Duty, error) {
	duty, err := s.store.FindByID(ctx, classID, dutyID)
	if err != nil {
		return nil, lookupError(err, dutyID, "duty not found", "failed to load duty")
	}
	return duty, nil
}
