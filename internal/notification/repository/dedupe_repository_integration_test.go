//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"media_pipeline/pkg/database"
	"media_pipeline/pkg/logger"
	testtool "media_pipeline/pkg/test_tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupe_Redis(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	container, host, port, err := testtool.SetupContainer(ctx, testtool.RedisRequest())
	require.NoError(t, err)
	defer container.Terminate(ctx)

	client, err := database.NewRedisClient(ctx, database.RedisConnection{
		Addr:          host + ":" + port,
		RetryCount:    5,
		RetryInterval: time.Second,
	})
	require.NoError(t, err)
	defer client.Close()

	repo := NewDedupeRepository(database.NewRedisRepository[int64](client))

	seen, err := repo.Seen(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, repo.Mark(ctx, "ev-1", time.Minute))

	seen, err = repo.Seen(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, seen)
}
