package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRedis struct {
	mock.Mock
}

func (m *mockRedis) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *mockRedis) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func TestDedupe_Seen(t *testing.T) {
	r := new(mockRedis)
	repo := NewDedupeRepository(r)

	r.On("Exists", mock.Anything, "notify:delivered:ev-1").Return(true, nil)
	r.On("Exists", mock.Anything, "notify:delivered:ev-2").Return(false, nil)
	r.On("Exists", mock.Anything, "notify:delivered:ev-3").Return(false, errors.New("redis down"))

	ok, err := repo.Seen(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Seen(context.Background(), "ev-2")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Seen(context.Background(), "ev-3")
	assert.ErrorContains(t, err, "redis down")
}

func TestDedupe_Mark(t *testing.T) {
	r := new(mockRedis)
	repo := NewDedupeRepository(r)

	r.On("Set", mock.Anything, "notify:delivered:ev-1", mock.AnythingOfType("int64"), 24*time.Hour).Return(nil)
	require.NoError(t, repo.Mark(context.Background(), "ev-1", 24*time.Hour))
	r.AssertExpectations(t)
}
