package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Incr(ctx context.Context, key string) (int64, error)
}

func fundScope(classID string) string { return "funds:" + classID }

func fundSummaryKey(classID string) string { return fundScope(classID) + ":summary" }

func fundPattern(classID string) string { return fundScope(classID) + ":*" }

func dutyScope(classID string) string { return "duties:" + classID }

func leaderboardKey(classID string) string { return dutyScope(classID) + ":leaderboard" }

func leaderboardPattern(classID string) string { return leaderboardKey(classID) + "*" }

// generationKey lives outside every scope pattern so invalidation never
// resets the counter.
func generationKey(scope string) string { return "gen:" + scope }

func scopedKey(key string, generation int64) string {
	return key + ":g" + strconv.FormatInt(generation, 10)
}

// CacheService caches derived aggregates and records cache metrics. A nil or
// disabled service behaves as a permanent miss.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate removes cached values for the provided pattern. Failures are
// logged and returned; callers treat them as non-fatal.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// ScopedKey binds key to the current write generation of scope. It must be
// called before the value is computed: a fill that overlaps a Bump then lands
// under a generation nobody reads again. ok is false when caching is off or
// the generation cannot be read.
func (s *CacheService) ScopedKey(ctx context.Context, scope, key string) (string, bool) {
	if !s.Enabled() {
		return "", false
	}
	var generation int64
	if err := s.repo.Get(ctx, generationKey(scope), &generation); err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache generation read failed", zap.String("scope", scope), zap.Error(err))
		return "", false
	}
	return scopedKey(key, generation), true
}

// Bump advances the write generation of scope and then drops the entries
// matching pattern.
func (s *CacheService) Bump(ctx context.Context, scope, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if _, err := s.repo.Incr(ctx, generationKey(scope)); err != nil {
		s.logger.Warn("cache generation bump failed", zap.String("scope", scope), zap.Error(err))
		_ = s.Invalidate(ctx, pattern)
		return err
	}
	return s.Invalidate(ctx, pattern)
}
