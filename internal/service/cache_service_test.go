package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/classpal-api/internal/dto"
	"github.com/noah-isme/classpal-api/internal/models"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
)

type fakeCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{entries: make(map[string][]byte)}
}

func (f *fakeCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = raw
	return nil
}

func (f *fakeCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range f.entries {
		if key == pattern || (strings.HasSuffix(pattern, "*") && strings.HasPrefix(key, prefix)) {
			delete(f.entries, key)
		}
	}
	f.deleted = append(f.deleted, pattern)
	return nil
}

func (f *fakeCacheRepo) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var value int64
	if raw, ok := f.entries[key]; ok {
		if err := json.Unmarshal(raw, &value); err != nil {
			return 0, err
		}
	}
	value++
	raw, err := json.Marshal(value)
	if err != nil {
		return 0, err
	}
	f.entries[key] = raw
	return value, nil
}

func (f *fakeCacheRepo) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[key]
	return ok
}

// racingDutyStore runs afterRead once, between the leaderboard read and the
// cache fill that follows it.
type racingDutyStore struct {
	dutyStore
	afterRead func()
}

func (s *racingDutyStore) Leaderboard(ctx context.Context, classID string) ([]models.PointBalance, error) {
	balances, err := s.dutyStore.Leaderboard(ctx, classID)
	if hook := s.afterRead; hook != nil {
		s.afterRead = nil
		hook()
	}
	return balances, err
}

// racingFundStore runs afterTotals once, after the ledger totals were read.
type racingFundStore struct {
	fundStore
	afterTotals func()
}

func (s *racingFundStore) Totals(ctx context.Context, classID string) (models.LedgerTotals, error) {
	totals, err := s.fundStore.Totals(ctx, classID)
	if hook := s.afterTotals; hook != nil {
		s.afterTotals = nil
		hook()
	}
	return totals, err
}

func TestCacheServiceScopedKeyFollowsGeneration(t *testing.T) {
	repo := newFakeCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	key, ok := cache.ScopedKey(ctx, fundScope(testClassID), fundSummaryKey(testClassID))
	require.True(t, ok)
	assert.Equal(t, "funds:c1:summary:g0", key)

	require.NoError(t, cache.Bump(ctx, fundScope(testClassID), fundPattern(testClassID)))
	key, ok = cache.ScopedKey(ctx, fundScope(testClassID), fundSummaryKey(testClassID))
	require.True(t, ok)
	assert.Equal(t, "funds:c1:summary:g1", key)
	assert.True(t, repo.has(generationKey(fundScope(testClassID))))

	var nilCache *CacheService
	_, ok = nilCache.ScopedKey(ctx, fundScope(testClassID), fundSummaryKey(testClassID))
	assert.False(t, ok)
	assert.NoError(t, nilCache.Bump(ctx, fundScope(testClassID), fundPattern(testClassID)))
}

func TestCacheServiceDisabledIsMiss(t *testing.T) {
	var nilCache *CacheService
	hit, err := nilCache.Get(context.Background(), "k", &struct{}{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, nilCache.Set(context.Background(), "k", 1, 0))
	assert.NoError(t, nilCache.Invalidate(context.Background(), "k"))

	disabled := NewCacheService(newFakeCacheRepo(), nil, time.Minute, zap.NewNop(), false)
	assert.False(t, disabled.Enabled())
}

func TestFundSummaryCachedAndInvalidatedOnWrite(t *testing.T) {
	env := newTestEnv(t)
	repo := newFakeCacheRepo()
	cache := NewCacheService(repo, env.metrics, time.Minute, zap.NewNop(), true)
	funds := NewFundService(env.store.Funds(), env.access, env.attachments, cache, env.metrics, validator.New(), zap.NewNop(), FundServiceConfig{RequireReceipt: true})
	ctx := context.Background()

	first, err := funds.Summary(ctx, actor("u1"))
	require.NoError(t, err)
	assert.Zero(t, first.Balance)
	assert.True(t, repo.has(scopedKey(fundSummaryKey(testClassID), 0)))

	_, err = funds.RecordTransaction(ctx, actor("tre"), dto.RecordTransactionRequest{Type: models.TransactionIncome, Description: "Fee", Amount: 1000})
	require.NoError(t, err)
	assert.Contains(t, repo.deleted, fundPattern(testClassID))
	assert.False(t, repo.has(scopedKey(fundSummaryKey(testClassID), 0)))

	second, err := funds.Summary(ctx, actor("u1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), second.Balance)

	cached, err := funds.Summary(ctx, actor("u1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), cached.Balance)
}

func TestLeaderboardCacheInvalidatedOnApprove(t *testing.T) {
	env := newTestEnv(t)
	repo := newFakeCacheRepo()
	cache := NewCacheService(repo, env.metrics, time.Minute, zap.NewNop(), true)
	duties := NewDutyService(env.store.Duties(), env.access, nil, cache, env.metrics, validator.New(), zap.NewNop())
	ctx := context.Background()

	board, err := duties.Leaderboard(ctx, actor("u1"))
	require.NoError(t, err)
	assert.Empty(t, board)
	assert.True(t, repo.has(scopedKey(leaderboardKey(testClassID), 0)))

	duty, err := duties.Create(ctx, actor("mon"), dto.CreateDutyRequest{Title: "Sweep", AssigneeID: "u1", Points: 7})
	require.NoError(t, err)
	_, err = duties.SubmitProof(ctx, actor("u1"), duty.ID, dto.SubmitProofRequest{})
	require.NoError(t, err)
	_, err = duties.Approve(ctx, actor("mon"), duty.ID)
	require.NoError(t, err)

	board, err = duties.Leaderboard(ctx, actor("u1"))
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, 7, board[0].Points)
}

func TestLeaderboardFillOverlappingApproveIsNotServed(t *testing.T) {
	env := newTestEnv(t)
	repo := newFakeCacheRepo()
	cache := NewCacheService(repo, env.metrics, time.Minute, zap.NewNop(), true)
	store := &racingDutyStore{dutyStore: env.store.Duties()}
	duties := NewDutyService(store, env.access, nil, cache, env.metrics, validator.New(), zap.NewNop())
	ctx := context.Background()

	duty, err := duties.Create(ctx, actor("mon"), dto.CreateDutyRequest{Title: "Sweep", AssigneeID: "u1", Points: 12})
	require.NoError(t, err)
	_, err = duties.SubmitProof(ctx, actor("u1"), duty.ID, dto.SubmitProofRequest{})
	require.NoError(t, err)

	store.afterRead = func() {
		_, approveErr := duties.Approve(ctx, actor("mon"), duty.ID)
		require.NoError(t, approveErr)
	}
	stale, err := duties.Leaderboard(ctx, actor("u1"))
	require.NoError(t, err)
	assert.Empty(t, stale)

	board, err := duties.Leaderboard(ctx, actor("u1"))
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "u1", board[0].UserID)
	assert.Equal(t, 12, board[0].Points)
}

func TestFundSummaryFillOverlappingWriteIsNotServed(t *testing.T) {
	env := newTestEnv(t)
	repo := newFakeCacheRepo()
	cache := NewCacheService(repo, env.metrics, time.Minute, zap.NewNop(), true)
	store := &racingFundStore{fundStore: env.store.Funds()}
	funds := NewFundService(store, env.access, env.attachments, cache, env.metrics, validator.New(), zap.NewNop(), FundServiceConfig{RequireReceipt: true})
	ctx := context.Background()

	store.afterTotals = func() {
		_, recordErr := funds.RecordTransaction(ctx, actor("tre"), dto.RecordTransactionRequest{Type: models.TransactionIncome, Description: "Fee", Amount: 5000})
		require.NoError(t, recordErr)
	}
	stale, err := funds.Summary(ctx, actor("u1"))
	require.NoError(t, err)
	assert.Zero(t, stale.Balance)

	fresh, err := funds.Summary(ctx, actor("u1"))
	require.NoError(t, err)
	assert.Equal(t, int64(5000), fresh.Balance)
}
