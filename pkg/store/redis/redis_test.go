package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
	"github.com/matzehuels/framegraph/pkg/store/redis"
	"github.com/matzehuels/framegraph/pkg/store/storetest"
)

func newServer(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newServer(t)
	storetest.RunContract(t, redis.NewFromClient(client))
}

func TestRedisStore_KeyLayout(t *testing.T) {
	mr, client := newServer(t)
	s := redis.NewFromClient(client, redis.WithPrefix("fg:"))
	require.NoError(t, s.Save(context.Background(), storetest.Sample("poster")))

	assert.True(t, mr.Exists("fg:project:poster"))
	members, err := mr.ZMembers("fg:projects")
	require.NoError(t, err)
	assert.Equal(t, []string{"poster"}, members)
}

func TestRedisStore_TTL(t *testing.T) {
	mr, client := newServer(t)
	s := redis.NewFromClient(client, redis.WithTTL(time.Second))
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, storetest.Sample("short")))

	mr.FastForward(2 * time.Second)

	_, err := s.Load(ctx, "short")
	assert.True(t, fgerrors.Is(err, fgerrors.ErrCodeNotFound))
}

func TestNew(t *testing.T) {
	mr, _ := newServer(t)
	ctx := context.Background()

	s, err := redis.New(ctx, redis.Config{Addr: mr.Addr(), Prefix: "x:"})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, storetest.Sample("a")))
	assert.True(t, mr.Exists("x:project:a"))
	require.NoError(t, s.Close())

	addr := mr.Addr()
	mr.Close()
	_, err = redis.New(ctx, redis.Config{Addr: addr})
	assert.Error(t, err)
}
