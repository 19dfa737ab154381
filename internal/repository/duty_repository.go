package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classpal-api/internal/models"
)

const dutyColumns = `id, class_id, title, description, scheduled_at, assignee_id, status, points, proof_path,
	submitted_at, reviewed_by, reviewed_at, created_by, version, created_at, updated_at`

// DutyRepository persists duties and the point ledger.
type DutyRepository struct {
	db *sqlx.DB
}

// NewDutyRepository constructs the repository.
func NewDutyRepository(db *sqlx.DB) *DutyRepository {
	return &DutyRepository{db: db}
}

// Create inserts a new duty.
func (r *DutyRepository) Create(ctx context.Context, duty *models.Duty) error {
	if duty.ID == "" {
		duty.ID = uuid.NewString()
	}
	if duty.Version == 0 {
		duty.Version = 1
	}
	const query = `INSERT INTO duties (` + dutyColumns + `)
VALUES (:id, :class_id, :title, :description, :scheduled_at, :assignee_id, :status, :points, :proof_path,
	:submitted_at, :reviewed_by, :reviewed_at, :created_by, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, duty); err != nil {
		return fmt.Errorf("create duty: %w", err)
	}
	return nil
}

// FindByID returns a duty of the class.
func (r *DutyRepository) FindByID(ctx context.Context, classID, id string) (*models.Duty, error) {
	const query = `SELECT ` + dutyColumns + ` FROM duties WHERE class_id = $1 AND id = $2`
	var duty models.Duty
	if err := r.db.GetContext(ctx, &duty, query, classID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find duty: %w", err)
	}
	return &duty, nil
}

// List returns duties matching the filter ordered by creation time.
func (r *DutyRepository) List(ctx context.Context, filter models.DutyFilter) ([]models.Duty, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + dutyColumns + ` FROM duties WHERE class_id = $1`)
	args := []interface{}{filter.ClassID}
	if filter.AssigneeID != "" {
		args = append(args, filter.AssigneeID)
		builder.WriteString(fmt.Sprintf(" AND assignee_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		builder.WriteString(fmt.Sprintf(" AND status = $%d", len(args)))
	}
	builder.WriteString(" ORDER BY created_at, id")

	var duties []models.Duty
	if err := r.db.SelectContext(ctx, &duties, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list duties: %w", err)
	}
	return duties, nil
}

// Transition writes the new duty state guarded by the expected version and
// applies the optional point credit in the same transaction. A version
// mismatch returns sql.ErrNoRows.
func (r *DutyRepository) Transition(ctx context.Context, params DutyTransitionParams) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin duty transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	duty := params.Duty
	const update = `UPDATE duties SET status = $1, proof_path = $2, submitted_at = $3, reviewed_by = $4, reviewed_at = $5,
	updated_at = $6, version = version + 1
WHERE id = $7 AND class_id = $8 AND version = $9`
	result, err := tx.ExecContext(ctx, update,
		duty.Status, duty.ProofPath, duty.SubmittedAt, duty.ReviewedBy, duty.ReviewedAt,
		duty.UpdatedAt, duty.ID, duty.ClassID, params.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("update duty status: %w", err)
	}
	if err = expectOneRow(result, "duty transition"); err != nil {
		return err
	}

	if credit := params.Credit; credit != nil {
		const upsert = `INSERT INTO point_ledger (class_id, user_id, points, reached_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (class_id, user_id) DO UPDATE SET points = point_ledger.points + EXCLUDED.points, reached_at = EXCLUDED.reached_at`
		if _, err = tx.ExecContext(ctx, upsert, credit.ClassID, credit.UserID, credit.Points, credit.At); err != nil {
			return fmt.Errorf("credit duty points: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit duty transition: %w", err)
	}
	duty.Version = params.ExpectedVersion + 1
	return nil
}

// Leaderboard returns the point ledger of a class, highest first, ties to the
// earliest reached total and then the lower user id.
func (r *DutyRepository) Leaderboard(ctx context.Context, classID string) ([]models.PointBalance, error) {
	const query = `SELECT p.class_id, p.user_id, COALESCE(u.display_name, '') AS display_name, p.points, p.reached_at
FROM point_ledger p LEFT JOIN users u ON u.id = p.user_id
WHERE p.class_id = $1
ORDER BY p.points DESC, p.reached_at ASC, p.user_id ASC`
	var rows []models.PointBalance
	if err := r.db.SelectContext(ctx, &rows, query, classID); err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	return rows, nil
}

func expectOneRow(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", what, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
