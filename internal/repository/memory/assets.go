package memory

import (
	"context"
	"database/sql"
	"sort"

	"github.com/noah-isme/classpal-api/internal/models"
	"github.com/noah-isme/classpal-api/internal/repository"
)

// AssetRepository stores lendable assets and their audit trail.
type AssetRepository struct{ s *Store }

// Create inserts a new asset.
func (r *AssetRepository) Create(_ context.Context, asset *models.Asset) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&asset.ID)
	if asset.Version == 0 {
		asset.Version = 1
	}
	r.s.assets[asset.ID] = *asset
	r.s.assetOrder = append(r.s.assetOrder, asset.ID)
	return nil
}

// FindByID returns an asset of the class or sql.ErrNoRows.
func (r *AssetRepository) FindByID(_ context.Context, classID, id string) (*models.Asset, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	asset, ok := r.s.assets[id]
	if !ok || asset.ClassID != classID {
		return nil, sql.ErrNoRows
	}
	return &asset, nil
}

// List returns the assets of a class ordered by name.
func (r *AssetRepository) List(_ context.Context, classID string) ([]models.Asset, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.Asset, 0)
	for _, id := range r.s.assetOrder {
		if asset := r.s.assets[id]; asset.ClassID == classID {
			out = append(out, asset)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Transition replaces the asset when its version matches and appends the
// audit entry under the same lock.
func (r *AssetRepository) Transition(_ context.Context, params repository.AssetTransitionParams) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.assets[params.Asset.ID]
	if !ok || current.ClassID != params.Asset.ClassID || current.Version != params.ExpectedVersion {
		return sql.ErrNoRows
	}

	next := *params.Asset
	next.Version = params.ExpectedVersion + 1
	r.s.assets[next.ID] = next
	params.Asset.Version = next.Version

	if entry := params.Entry; entry != nil {
		ensureID(&entry.ID)
		entry.Seq = r.s.nextSeq()
		r.s.audit = append(r.s.audit, *entry)
	}
	return nil
}

// ListAudit returns audit entries newest first.
func (r *AssetRepository) ListAudit(_ context.Context, filter models.AssetAuditFilter) ([]models.AssetAuditEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.AssetAuditEntry, 0)
	for _, entry := range r.s.audit {
		if entry.ClassID != filter.ClassID {
			continue
		}
		if filter.AssetID != "" && entry.AssetID != filter.AssetID {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Seq > out[j].Seq
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// LatestReturns returns the newest returned entry of every asset in the class.
func (r *AssetRepository) LatestReturns(_ context.Context, classID string) ([]models.AssetAuditEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	latest := make(map[string]models.AssetAuditEntry)
	for _, entry := range r.s.audit {
		if entry.ClassID != classID || entry.Action != models.AssetActionReturned {
			continue
		}
		prev, ok := latest[entry.AssetID]
		if !ok || entry.Timestamp.After(prev.Timestamp) || (entry.Timestamp.Equal(prev.Timestamp) && entry.Seq > prev.Seq) {
			latest[entry.AssetID] = entry
		}
	}
	out := make([]models.AssetAuditEntry, 0, len(latest))
	for _, entry := range latest {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out, nil
}
