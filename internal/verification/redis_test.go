package verification

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	srv := miniredis.RunT(t)
	cli := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = cli.Close() })

	ctx := context.Background()
	store := NewRedisStore(cli, 2*time.Hour)
	key := Key{SessionID: "sess-1", Token: "tok"}

	rec, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, rec)

	verifiedAt := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, key, Record{VerifiedAt: verifiedAt, Method: MethodCode, Code: "123456"}))

	assert.True(t, srv.Exists("verify:sess-1:tok"))
	assert.Equal(t, 2*time.Hour, srv.TTL("verify:sess-1:tok"))

	rec, err = store.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "123456", rec.Code)
	assert.True(t, verifiedAt.Equal(rec.VerifiedAt))

	srv.FastForward(3 * time.Hour)
	rec, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, store.Put(ctx, key, Record{Method: MethodInPerson}))
	require.NoError(t, store.Delete(ctx, key))
	assert.False(t, srv.Exists("verify:sess-1:tok"))
}

func TestRedisStore_Unreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	cli := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = cli.Close() })
	srv.Close()

	_, err := NewRedisStore(cli, time.Minute).Get(context.Background(), Key{SessionID: "s", Token: "t"})
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	srv := miniredis.RunT(t)

	cli, err := NewRedisClient(context.Background(), "redis://"+srv.Addr()+"/0", "")
	require.NoError(t, err)
	_ = cli.Close()

	_, err = NewRedisClient(context.Background(), "not a url", "")
	assert.Error(t, err)
}
