package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil, "classpal")
	ctx := context.Background()

	var dest map[string]int
	err := repo.Get(ctx, "funds:cs101:summary", &dest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))

	assert.NoError(t, repo.Set(ctx, "funds:cs101:summary", map[string]int{"balance": 1}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "funds:cs101:*"))
	generation, err := repo.Incr(ctx, "gen:funds:cs101")
	require.NoError(t, err)
	assert.Zero(t, generation)
	assert.NoError(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
}

func TestCacheRepositoryNamespacesKeys(t *testing.T) {
	assert.Equal(t, "classpal:funds:cs101", NewCacheRepository(nil, nil, "classpal").key("funds:cs101"))
	assert.Equal(t, "funds:cs101", NewCacheRepository(nil, nil, "").key("funds:cs101"))
}
