package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/classpal-api/internal/models"
)

type userStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type classStore interface {
	ListForUser(ctx context.Context, userID string) ([]models.ClassSummary, error)
	ListMembers(ctx context.Context, classID string) ([]models.ClassMember, error)
}

// ClassService serves the session context: who the user is and which classes
// they can switch between.
type ClassService struct {
	users   userStore
	classes classStore
	access  *AccessService
	logger  *zap.Logger
}

// NewClassService constructs a ClassService.
func NewClassService(users userStore, classes classStore, access *AccessService, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{users: users, classes: classes, access: access, logger: logger}
}

// Me returns the profile of the authenticated user.
func (s *ClassService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, userID, "user not found", "failed to load user")
	}
	return user, nil
}

// ListClasses returns the classes the user belongs to.
func (s *ClassService) ListClasses(ctx context.Context, userID string) ([]models.ClassSummary, error) {
	classes, err := s.classes.ListForUser(ctx, userID)
	if err != nil {
		return nil, internalError(err, "failed to list classes")
	}
	if classes == nil {
		classes = []models.ClassSummary{}
	}
	return classes, nil
}

// Members lists the roster of the actor's active class.
func (s *ClassService) Members(ctx context.Context, actor models.Actor) ([]models.ClassMember, error) {
	if _, err := s.access.Member(ctx, actor); err != nil {
		return nil, err
	}
	members, err := s.classes.ListMembers(ctx, actor.ClassID)
	if err != nil {
		return nil, internalError(err, "failed to list class members")
	}
	if members == nil {
		members = []models.ClassMember{}
	}
	return members, nil
}
