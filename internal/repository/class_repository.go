package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classpal-api/internal/models"
)

// ClassRepository handles classes and their memberships.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns a class by identifier.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassSummary, error) {
	const query = `SELECT id, name, advisor, schedule, created_at FROM classes WHERE id = $1`
	var class models.ClassSummary
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find class: %w", err)
	}
	return &class, nil
}

// ListForUser returns the classes a user belongs to, ordered by name.
func (r *ClassRepository) ListForUser(ctx context.Context, userID string) ([]models.ClassSummary, error) {
	const query = `SELECT c.id, c.name, c.advisor, c.schedule, c.created_at
FROM classes c JOIN class_members m ON m.class_id = c.id
WHERE m.user_id = $1 ORDER BY c.name`
	var classes []models.ClassSummary
	if err := r.db.SelectContext(ctx, &classes, query, userID); err != nil {
		return nil, fmt.Errorf("list classes for user: %w", err)
	}
	return classes, nil
}

// FindMember returns a membership row joined with the user's display name.
func (r *ClassRepository) FindMember(ctx context.Context, classID, userID string) (*models.ClassMember, error) {
	const query = `SELECT m.class_id, m.user_id, u.display_name, m.role, m.joined_at
FROM class_members m JOIN users u ON u.id = m.user_id
WHERE m.class_id = $1 AND m.user_id = $2`
	var member models.ClassMember
	if err := r.db.GetContext(ctx, &member, query, classID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find class member: %w", err)
	}
	return &member, nil
}

// ListMembers returns class members ordered by display name.
func (r *ClassRepository) ListMembers(ctx context.Context, classID string) ([]models.ClassMember, error) {
	const query = `SELECT m.class_id, m.user_id, u.display_name, m.role, m.joined_at
FROM class_members m JOIN users u ON u.id = m.user_id
WHERE m.class_id = $1 ORDER BY u.display_name, m.user_id`
	var members []models.ClassMember
	if err := r.db.SelectContext(ctx, &members, query, classID); err != nil {
		return nil, fmt.Errorf("list class members: %w", err)
	}
	return members, nil
}
