package report

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

func TestTokenCacheReusesUntilExpiry(t *testing.T) {
	clk := testingclock.NewFakePassiveClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	cache := newTokenCache(clk)

	var calls int
	fetch := func(context.Context) (string, time.Duration, error) {
		calls++
		return "token", time.Hour, nil
	}

	for i := 0; i < 3; i++ {
		tok, err := cache.Get(context.Background(), "alice", fetch)
		require.NoError(t, err)
		assert.Equal(t, "token", tok)
	}
	assert.Equal(t, 1, calls)

	// Refreshed within the expiry margin.
	clk.SetTime(clk.Now().Add(time.Hour - 30*time.Second))
	_, err := cache.Get(context.Background(), "alice", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestTokenCacheInvalidate(t *testing.T) {
	cache := newTokenCache(testingclock.NewFakePassiveClock(time.Now()))

	var calls int
	fetch := func(context.Context) (string, time.Duration, error) {
		calls++
		return "token", time.Hour, nil
	}

	_, _ = cache.Get(context.Background(), "k", fetch)
	cache.Invalidate("k")
	_, _ = cache.Get(context.Background(), "k", fetch)
	assert.Equal(t, 2, calls)
}

func TestTokenCacheErrorNotCached(t *testing.T) {
	cache := newTokenCache(testingclock.NewFakePassiveClock(time.Now()))

	_, err := cache.Get(context.Background(), "k", func(context.Context) (string, time.Duration, error) {
		return "", 0, errors.New("denied")
	})
	require.Error(t, err)

	tok, err := cache.Get(context.Background(), "k", func(context.Context) (string, time.Duration, error) {
		return "ok", time.Hour, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", tok)
}

func TestTokenCacheSharesConcurrentFetch(t *testing.T) {
	cache := newTokenCache(testingclock.NewFakePassiveClock(time.Now()))

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (string, time.Duration, error) {
		calls.Add(1)
		<-release
		return "token", time.Hour, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := cache.Get(context.Background(), "k", fetch)
			assert.NoError(t, err)
			assert.Equal(t, "token", tok)
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestTokenCacheSharedFetchSurvivesCancelledCaller(t *testing.T) {
	cache := newTokenCache(testingclock.NewFakePassiveClock(time.Now()))

	started := make(chan struct{})
	release := make(chan struct{})
	var (
		calls    atomic.Int32
		fetchErr atomic.Value
	)
	fetch := func(ctx context.Context) (string, time.Duration, error) {
		calls.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			fetchErr.Store(err)
		}
		return "token", time.Hour, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := cache.Get(ctx, "alice", fetch)
		first <- err
	}()
	<-started

	second := make(chan string, 1)
	go func() {
		tok, err := cache.Get(context.Background(), "alice", fetch)
		assert.NoError(t, err)
		second <- tok
	}()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	assert.Equal(t, "token", <-second)
	assert.Nil(t, fetchErr.Load())
	assert.Equal(t, int32(1), calls.Load())
}
