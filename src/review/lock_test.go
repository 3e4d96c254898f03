package review

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerialisesPerKey(t *testing.T) {
	k := NewKeyedMutex()

	unlock, err := k.Lock(context.Background(), "42")
	require.NoError(t, err)

	other, err := k.Lock(context.Background(), "43")
	require.NoError(t, err)
	other()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "42")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	again, err := k.Lock(context.Background(), "42")
	require.NoError(t, err)
	again()
	assert.Zero(t, k.held())
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := NewRedisLocker(rdb, time.Minute)
	l.poll = 5 * time.Millisecond

	unlock, err := l.Lock(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, mr.Exists("review:lock:42"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "42")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.False(t, mr.Exists("review:lock:42"))

	unlock2, err := l.Lock(context.Background(), "42")
	require.NoError(t, err)
	unlock2()
}

func TestRedisLockerReleaseKeepsForeignToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := NewRedisLocker(rdb, time.Minute)
	unlock, err := l.Lock(context.Background(), "42")
	require.NoError(t, err)

	// lock expired and was taken by another instance
	require.NoError(t, mr.Set("review:lock:42", "someone-else"))
	unlock()
	got, err := mr.Get("review:lock:42")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
