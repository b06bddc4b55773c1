package runstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NisargKadam/mental-wellness-agent/internal/cache"
	"github.com/NisargKadam/mental-wellness-agent/workflow"
)

func setupRedisStore(t *testing.T, max int, ttl time.Duration, opts ...Option) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	mgr, err := cache.NewManager(cache.Config{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	store := NewRedisStore(mgr, "test:runs:", max, ttl, opts...)
	t.Cleanup(func() { _ = store.Close() })
	return mr, store
}

func TestRedisStore_Behaviour(t *testing.T) {
	_, store := setupRedisStore(t, 0, 0)
	exerciseStore(t, store)
}

func TestRedisStore_Keys(t *testing.T) {
	mr, store := setupRedisStore(t, 0, time.Hour)
	require.NoError(t, store.Save(context.Background(), newRecord("r1", "g", workflow.RunCompleted, 0)))

	assert.True(t, mr.Exists("test:runs:r1"))
	assert.Equal(t, time.Hour, mr.TTL("test:runs:r1"))
	members, err := mr.ZMembers("test:runs:index")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, members)
}

func TestRedisStore_EvictsOldest(t *testing.T) {
	mr, store := setupRedisStore(t, 2, 0)
	ctx := context.Background()

	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, store.Save(ctx, newRecord(id, "g", workflow.RunCompleted, time.Duration(i)*time.Second)))
	}

	all, err := store.List(ctx, workflow.HistoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"r3", "r2"}, ids(all))
	assert.False(t, mr.Exists("test:runs:r1"))

	_, err = store.Get(ctx, "r1")
	assert.ErrorIs(t, err, workflow.ErrRunNotFound)
}

func TestRedisStore_ListPrunesExpired(t *testing.T) {
	mr, store := setupRedisStore(t, 0, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newRecord("old", "g", workflow.RunCompleted, 0)))
	mr.FastForward(2 * time.Minute)
	require.NoError(t, store.Save(ctx, newRecord("new", "g", workflow.RunCompleted, time.Hour)))

	all, err := store.List(ctx, workflow.HistoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids(all))

	members, err := mr.ZMembers("test:runs:index")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, members)
}

func TestRedisStore_Observer(t *testing.T) {
	obs := &recordingObserver{}
	mr, store := setupRedisStore(t, 0, 0, WithObserver(obs))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newRecord("r1", "g", workflow.RunCompleted, 0)))
	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, workflow.ErrRunNotFound)

	mr.Close()
	_, err = store.List(ctx, workflow.HistoryFilter{})
	require.Error(t, err)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []opRecord{
		{backend: BackendRedis, op: "save"},
		{backend: BackendRedis, op: "get"},
		{backend: BackendRedis, op: "list", failed: true},
	}, obs.ops)
}
