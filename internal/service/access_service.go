package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/classpal-api/internal/models"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
)

type classMemberStore interface {
	FindMember(ctx context.Context, classID, userID string) (*models.ClassMember, error)
}

// AccessService resolves class membership and capability checks for actors.
type AccessService struct {
	members classMemberStore
	logger  *zap.Logger
}

// NewAccessService constructs an AccessService.
func NewAccessService(members classMemberStore, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{members: members, logger: logger}
}

// Member returns the actor's membership in the active class. Global admins
// who are not enrolled act with advisor rights.
func (s *AccessService) Member(ctx context.Context, actor models.Actor) (*models.ClassMember, error) {
	if actor.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing actor")
	}
	if actor.ClassID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class id is required")
	}

	member, err := s.members.FindMember(ctx, actor.ClassID, actor.UserID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, internalError(err, "failed to load class membership")
		}
		if actor.Role == models.RoleAdmin {
			return &models.ClassMember{ClassID: actor.ClassID, UserID: actor.UserID, Role: models.ClassRoleAdvisor}, nil
		}
		return nil, appErrors.ForEntity(appErrors.Clone(appErrors.ErrForbidden, "not a member of this class"), actor.ClassID)
	}
	return member, nil
}

// Require ensures the actor is a class member holding capability.
func (s *AccessService) Require(ctx context.Context, actor models.Actor, capability models.Capability) (*models.ClassMember, error) {
	member, err := s.Member(ctx, actor)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleAdmin || member.Role.Has(capability) {
		return member, nil
	}
	s.logger.Debug("capability denied",
		zap.String("user_id", actor.UserID),
		zap.String("class_id", actor.ClassID),
		zap.String("capability", string(capability)),
		zap.String("class_role", string(member.Role)),
	)
	return nil, appErrors.ForEntity(appErrors.Clone(appErrors.ErrForbidden, "missing capability "+string(capability)), actor.ClassID)
}

// EnsureMember verifies that userID belongs to classID. It is used to check
// assignees and debtors supplied in request bodies.
func (s *AccessService) EnsureMember(ctx context.Context, classID, userID string) (*models.ClassMember, error) {
	member, err := s.members.FindMember(ctx, classID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ForEntity(appErrors.Clone(appErrors.ErrValidation, "user is not a member of this class"), userID)
		}
		return nil, internalError(err, "failed to load class membership")
	}
	return member, nil
}
