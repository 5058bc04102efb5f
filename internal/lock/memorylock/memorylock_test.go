package memorylock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbot-go/scbot/internal/lock"
)

func fakeSleep(_ context.Context, _ time.Duration) error { return nil }

func TestWaitLockExcludesConcurrentHolders(t *testing.T) {
	svc := New(fakeSleep)
	ctx := context.Background()

	l1, err := svc.WaitLock(ctx, "pr-status::o/r/1", time.Second)
	require.NoError(t, err)

	var secondAcquired sync.WaitGroup
	secondAcquired.Add(1)
	go func() {
		defer secondAcquired.Done()
		l2, err := svc.WaitLock(ctx, "pr-status::o/r/1", 200*time.Millisecond)
		assert.NoError(t, err)
		if l2 != nil {
			_ = l2.Release(ctx)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, l1.Release(ctx))
	secondAcquired.Wait()
}

func TestWaitLockTimesOut(t *testing.T) {
	svc := New(fakeSleep)
	ctx := context.Background()

	l1, err := svc.WaitLock(ctx, "k", time.Second)
	require.NoError(t, err)
	defer l1.Release(ctx)

	_, err = svc.WaitLock(ctx, "k", 0)
	var timeoutErr *lock.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
}

func TestKVTTLExpires(t *testing.T) {
	svc := New(fakeSleep)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok, err := svc.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
