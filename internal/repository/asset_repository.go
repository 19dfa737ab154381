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

const assetColumns = `id, class_id, name, icon, status, holder_id, held_since, version, created_at, updated_at`

// AssetRepository persists lendable assets and the lending audit log.
type AssetRepository struct {
	db *sqlx.DB
}

// NewAssetRepository constructs the repository.
func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Create inserts a new asset.
func (r *AssetRepository) Create(ctx context.Context, asset *models.Asset) error {
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	if asset.Version == 0 {
		asset.Version = 1
	}
	const query = `INSERT INTO assets (` + assetColumns + `)
VALUES (:id, :class_id, :name, :icon, :status, :holder_id, :held_since, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, asset); err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

// FindByID returns an asset of the class.
func (r *AssetRepository) FindByID(ctx context.Context, classID, id string) (*models.Asset, error) {
	const query = `SELECT ` + assetColumns + ` FROM assets WHERE class_id = $1 AND id = $2`
	var asset models.Asset
	if err := r.db.GetContext(ctx, &asset, query, classID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find asset: %w", err)
	}
	return &asset, nil
}

// List returns the assets of a class ordered by name.
func (r *AssetRepository) List(ctx context.Context, classID string) ([]models.Asset, error) {
	const query = `SELECT ` + assetColumns + ` FROM assets WHERE class_id = $1 ORDER BY name, created_at`
	var assets []models.Asset
	if err := r.db.SelectContext(ctx, &assets, query, classID); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

// Transition writes the new asset state guarded by the expected version and
// appends the audit entry in the same transaction.
func (r *AssetRepository) Transition(ctx context.Context, params AssetTransitionParams) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin asset transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	asset := params.Asset
	const update = `UPDATE assets SET status = $1, holder_id = $2, held_since = $3, updated_at = $4, version = version + 1
WHERE id = $5 AND class_id = $6 AND version = $7`
	result, err := tx.ExecContext(ctx, update,
		asset.Status, asset.HolderID, asset.HeldSince, asset.UpdatedAt, asset.ID, asset.ClassID, params.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("update asset status: %w", err)
	}
	if err = expectOneRow(result, "asset transition"); err != nil {
		return err
	}

	if entry := params.Entry; entry != nil {
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		const insert = `INSERT INTO asset_audit_log (id, class_id, asset_id, asset_name, action, user_id, "timestamp")
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING seq`
		if err = tx.GetContext(ctx, &entry.Seq, insert,
			entry.ID, entry.ClassID, entry.AssetID, entry.AssetName, entry.Action, entry.UserID, entry.Timestamp); err != nil {
			return fmt.Errorf("append asset audit: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit asset transition: %w", err)
	}
	asset.Version = params.ExpectedVersion + 1
	return nil
}

// ListAudit returns audit entries newest first.
func (r *AssetRepository) ListAudit(ctx context.Context, filter models.AssetAuditFilter) ([]models.AssetAuditEntry, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT id, seq, class_id, asset_id, asset_name, action, user_id, "timestamp" FROM asset_audit_log WHERE class_id = $1`)
	args := []interface{}{filter.ClassID}
	if filter.AssetID != "" {
		args = append(args, filter.AssetID)
		builder.WriteString(fmt.Sprintf(" AND asset_id = $%d", len(args)))
	}
	builder.WriteString(` ORDER BY "timestamp" DESC, seq DESC`)
	if filter.Limit > 0 {
		builder.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
	}

	var entries []models.AssetAuditEntry
	if err := r.db.SelectContext(ctx, &entries, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list asset audit: %w", err)
	}
	return entries, nil
}

// LatestReturns returns the newest returned entry of every asset in the class.
func (r *AssetRepository) LatestReturns(ctx context.Context, classID string) ([]models.AssetAuditEntry, error) {
	const query = `SELECT DISTINCT ON (asset_id) id, seq, class_id, asset_id, asset_name, action, user_id, "timestamp"
FROM asset_audit_log WHERE class_id = $1 AND action = $2 ORDER BY asset_id, "timestamp" DESC, seq DESC`
	var entries []models.AssetAuditEntry
	if err := r.db.SelectContext(ctx, &entries, query, classID, models.AssetActionReturned); err != nil {
		return nil, fmt.Errorf("list latest asset returns: %w", err)
	}
	return entries, nil
}
