package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classpal-api/internal/dto"
	"github.com/noah-isme/classpal-api/internal/models"
	"github.com/noah-isme/classpal-api/internal/repository"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type assetStore interface {
	Create(ctx context.Context, asset *models.Asset) error
	FindByID(ctx context.Context, classID, id string) (*models.Asset, error)
	List(ctx context.Context, classID string) ([]models.Asset, error)
	Transition(ctx context.Context, params repository.AssetTransitionParams) error
	ListAudit(ctx context.Context, filter models.AssetAuditFilter) ([]models.AssetAuditEntry, error)
	LatestReturns(ctx context.Context, classID string) ([]models.AssetAuditEntry, error)
}

// AssetService lends shared class items. Every borrow and return commits
// together with its audit entry.
type AssetService struct {
	clock
	store     assetStore
	access    *AccessService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssetService constructs an AssetService.
func NewAssetService(store assetStore, access *AccessService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AssetService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssetService{store: store, access: access, metrics: metrics, validator: validate, logger: logger}
}

// Create registers an available asset.
func (s *AssetService) Create(ctx context.Context, actor models.Actor, req dto.CreateAssetRequest) (*models.Asset, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid asset payload")
	}
	if _, err := s.access.Require(ctx, actor, models.CapabilityManageAssets); err != nil {
		return nil, err
	}
	now := s.Now()
	asset := &models.Asset{
		ClassID:   actor.ClassID,
		Name:      strings.TrimSpace(req.Name),
		Icon:      strings.TrimSpace(req.Icon),
		Status:    models.AssetStatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, asset); err != nil {
		return nil, internalError(err, "failed to create asset")
	}
	s.logger.Info("asset created", zap.String("asset_id", asset.ID), zap.String("class_id", asset.ClassID))
	return asset, nil
}

// List returns the class assets ordered by name.
func (s *AssetService) List(ctx context.Context, actor models.Actor) ([]models.Asset, error) {
	if _, err := s.access.Member(ctx, actor); err != nil {
		return nil, err
	}
	assets, err := s.store.List(ctx, actor.ClassID)
	if err != nil {
		return nil, internalError(err, "failed to list assets")
	}
	if assets == nil {
		return []models.Asset{}, nil
	}

	returns, err := s.store.LatestReturns(ctx, actor.ClassID)
	if err != nil {
		return nil, internalError(err, "failed to load asset returns")
	}
	lastUse := make(map[string]*models.AssetLastUse, len(returns))
	for _, entry := range returns {
		lastUse[entry.AssetID] = &models.AssetLastUse{UserID: entry.UserID, ReturnedAt: entry.Timestamp}
	}
	for i := range assets {
		if assets[i].Status == models.AssetStatusAvailable {
			assets[i].LastBorrowed = lastUse[assets[i].ID]
		}
	}
	return assets, nil
}

// Borrow hands an available asset to the actor. When two members race for
// the same asset exactly one wins; the other sees ASSET_UNAVAILABLE.
func (s *AssetService) Borrow(ctx context.Context, actor models.Actor, assetID string) (result *models.Asset, err error) {
	defer func() { s.metrics.ObserveCommand("asset.borrow", err) }()

	if _, err := s.access.Member(ctx, actor); err != nil {
		return nil, err
	}
	err = retryOnConflict(ctx, assetID, func() error {
		asset, err := s.load(ctx, actor.ClassID, assetID)
		if err != nil {
			return err
		}
		if asset.Status != models.AssetStatusAvailable {
			return appErrors.ForEntity(appErrors.ErrAssetUnavailable, assetID)
		}

		now := s.Now()
		next := *asset
		next.Status = models.AssetStatusInUse
		next.HolderID = ptr(actor.UserID)
		next.HeldSince = &now
		next.UpdatedAt = now
		entry := s.auditEntry(asset, models.AssetActionBorrowed, actor.UserID, now)
		if err := commitError(s.store.Transition(ctx, repository.AssetTransitionParams{Asset: &next, ExpectedVersion: asset.Version, Entry: entry}), "failed to borrow asset"); err != nil {
			return err
		}
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("asset borrowed", zap.String("asset_id", assetID), zap.String("user_id", actor.UserID))
	return result, nil
}

// Return makes a held asset available again. Only the holder may return it.
func (s *AssetService) Return(ctx context.Context, actor models.Actor, assetID string) (result *models.Asset, err error) {
	defer func() { s.metrics.ObserveCommand("asset.return", err) }()

	if _, err := s.access.Member(ctx, actor); err != nil {
		return nil, err
	}
	err = retryOnConflict(ctx, assetID, func() error {
		asset, err := s.load(ctx, actor.ClassID, assetID)
		if err != nil {
			return err
		}
		if asset.Status == models.AssetStatusAvailable {
			return appErrors.ForEntity(appErrors.ErrAssetAlreadyAvailable, assetID)
		}
		if asset.HolderID == nil || *asset.HolderID != actor.UserID {
			return appErrors.ForEntity(appErrors.ErrNotHolder, assetID)
		}

		now := s.Now()
		next := *asset
		next.Status = models.AssetStatusAvailable
		next.HolderID = nil
		next.HeldSince = nil
		next.UpdatedAt = now
		entry := s.auditEntry(asset, models.AssetActionReturned, actor.UserID, now)
		if err := commitError(s.store.Transition(ctx, repository.AssetTransitionParams{Asset: &next, ExpectedVersion: asset.Version, Entry: entry}), "failed to return asset"); err != nil {
			return err
		}
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("asset returned", zap.String("asset_id", assetID), zap.String("user_id", actor.UserID))
	return result, nil
}

// AuditLog lists borrow and return records newest first. An empty assetID
// returns the whole class history.
func (s *AssetService) AuditLog(ctx context.Context, actor models.Actor, assetID string, limit int) ([]models.AssetAuditEntry, error) {
	if _, err := s.access.Member(ctx, actor); err != nil {
		return nil, err
	}
	if assetID != "" {
		if _, err := s.load(ctx, actor.ClassID, assetID); err != nil {
			return nil, err
		}
	}
	switch {
	case limit <= 0:
		limit = defaultAuditLimit
	case limit > maxAuditLimit:
		limit = maxAuditLimit
	}
	entries, err := s.store.ListAudit(ctx, models.AssetAuditFilter{ClassID: actor.ClassID, AssetID: assetID, Limit: limit})
	if err != nil {
		return nil, internalError(err, "failed to load asset audit log")
	}
	if entries == nil {
		entries = []models.AssetAuditEntry{}
	}
	return entries, nil
}

func (s *AssetService) auditEntry(asset *models.Asset, action models.AssetAction, userID string, at time.Time) *models.AssetAuditEntry {
	return &models.AssetAuditEntry{
		ClassID:   asset.ClassID,
		AssetID:   asset.ID,
		AssetName: asset.Name,
		Action:    action,
		UserID:    userID,
		Timestamp: at,
	}
}

func (s *AssetService) load(ctx context.Context, classID, assetID string) (*models.Asset, error) {
	asset, err := s.store.FindByID(ctx, classID, assetID)
	if err != nil {
		return nil, lookupError(err, assetID, "asset not found", "failed to load asset")
	}
	return asset, nil
}
