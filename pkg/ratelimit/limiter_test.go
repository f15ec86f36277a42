package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T, counter Counter, clk *clock) *Limiter {
	t.Helper()
	l, err := New(counter, WithClock(clk.Now))
	require.NoError(t, err)
	return l
}

func startOfMinute() time.Time {
	return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
}

func TestLimiterAllowsTenThenDenies(t *testing.T) {
	clk := &clock{now: startOfMinute()}
	l := newTestLimiter(t, NewMemoryCounter(clk.Now), clk)
	ctx := context.Background()

	for i := 0; i < DefaultLimit; i++ {
		res, err := l.Allow(ctx, "alice", "cred-1")
		require.NoError(t, err)
		require.True(t, res.Allowed, "attempt %d", i+1)
		clk.Advance(time.Second)
	}

	res, err := l.Allow(ctx, "alice", "cred-1")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Greater(t, res.RetryAfter, time.Duration(0))

	// other pairs are unaffected
	res, err = l.Allow(ctx, "bob", "cred-1")
	require.NoError(t, err)
	require.True(t, res.Allowed)
	res, err = l.Allow(ctx, "alice", "cred-2")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestLimiterRetryAfterIsHonest(t *testing.T) {
	clk := &clock{now: startOfMinute()}
	l := newTestLimiter(t, NewMemoryCounter(clk.Now), clk)
	ctx := context.Background()

	for i := 0; i < DefaultLimit; i++ {
		res, err := l.Allow(ctx, "alice", "cred-1")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	denied, err := l.Allow(ctx, "alice", "cred-1")
	require.NoError(t, err)
	require.False(t, denied.Allowed)
	require.Equal(t, time.Minute, denied.RetryAfter)

	clk.Advance(denied.RetryAfter - time.Second)
	res, err := l.Allow(ctx, "alice", "cred-1")
	require.NoError(t, err)
	require.False(t, res.Allowed, "still inside the trailing window")

	clk.Advance(time.Second)
	res, err = l.Allow(ctx, "alice", "cred-1")
	require.NoError(t, err)
	require.True(t, res.Allowed, "trailing window is empty")
}

func TestLimiterBurstAtEndOfBucketHoldsForFullWindow(t *testing.T) {
	clk := &clock{now: startOfMinute().Add(59 * time.Second)}
	l := newTestLimiter(t, NewMemoryCounter(clk.Now), clk)
	ctx := context.Background()

	for i := 0; i < DefaultLimit; i++ {
		res, err := l.Allow(ctx, "alice", "cred-1")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	for _, offset := range []time.Duration{
		time.Second,
		6 * time.Second,
		30 * time.Second,
		59*time.Second + 999*time.Millisecond,
	} {
		at := startOfMinute().Add(59*time.Second + offset)
		clk.mu.Lock()
		clk.now = at
		clk.mu.Unlock()
		res, err := l.Allow(ctx, "alice", "cred-1")
		require.NoError(t, err)
		require.False(t, res.Allowed, "eleventh disclosure at +%s", offset)
		require.Equal(t, int64(DefaultLimit), res.Used)
		require.LessOrEqual(t, clk.Now().Add(res.RetryAfter), startOfMinute().Add(59*time.Second+time.Minute+time.Second))
		require.GreaterOrEqual(t, clk.Now().Add(res.RetryAfter), startOfMinute().Add(59*time.Second+time.Minute))
	}

	clk.mu.Lock()
	clk.now = startOfMinute().Add(59*time.Second + time.Minute)
	clk.mu.Unlock()
	res, err := l.Allow(ctx, "alice", "cred-1")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestLimiterNeverExceedsLimitInAnyTrailingWindow(t *testing.T) {
	clk := &clock{now: startOfMinute()}
	l := newTestLimiter(t, NewMemoryCounter(clk.Now), clk)
	ctx := context.Background()

	var allowed []time.Time
	for step := 0; step < 600; step++ {
		res, err := l.Allow(ctx, "alice", "cred-1")
		require.NoError(t, err)
		if res.Allowed {
			allowed = append(allowed, clk.Now())
		}
		clk.Advance(700 * time.Millisecond)
	}
	require.NotEmpty(t, allowed)

	for i, start := range allowed {
		inWindow := 0
		for _, at := range allowed[i:] {
			if at.Sub(start) < DefaultWindow {
				inWindow++
			}
		}
		require.LessOrEqual(t, inWindow, DefaultLimit, "window starting %s", start)
	}
}

func TestLimiterReleaseReturnsBudget(t *testing.T) {
	clk := &clock{now: startOfMinute()}
	l := newTestLimiter(t, NewMemoryCounter(clk.Now), clk)
	ctx := context.Background()

	for i := 0; i < DefaultLimit; i++ {
		res, err := l.Allow(ctx, "alice", "cred-1")
		require.NoError(t, err)
		require.True(t, res.Allowed)
		require.NoError(t, l.Release(ctx, res))
	}
	for i := 0; i < DefaultLimit; i++ {
		res, err := l.Allow(ctx, "alice", "cred-1")
		require.NoError(t, err)
		require.True(t, res.Allowed, "attempt %d after releases", i+1)
	}

	denied, err := l.Allow(ctx, "alice", "cred-1")
	require.NoError(t, err)
	require.False(t, denied.Allowed)
	require.NoError(t, l.Release(ctx, denied))
	res, err := l.Allow(ctx, "alice", "cred-1")
	require.NoError(t, err)
	require.False(t, res.Allowed, "releasing a denial frees nothing")
}

func TestLimiterWindowRollsOver(t *testing.T) {
	clk := &clock{now: startOfMinute().Add(20 * time.Second)}
	l := newTestLimiter(t, NewMemoryCounter(clk.Now), clk)
	ctx := context.Background()

	for i := 0; i < DefaultLimit; i++ {
		res, err := l.Allow(ctx, "alice", "cred-1")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, _ := l.Allow(ctx, "alice", "cred-1")
	require.False(t, res.Allowed)

	clk.Advance(2 * time.Minute)
	for i := 0; i < DefaultLimit; i++ {
		res, err := l.Allow(ctx, "alice", "cred-1")
		require.NoError(t, err)
		require.True(t, res.Allowed, "attempt %d after rollover", i+1)
	}
}

func TestLimiterDeniedAttemptsDoNotCount(t *testing.T) {
	clk := &clock{now: startOfMinute()}
	counter := NewMemoryCounter(clk.Now)
	l := newTestLimiter(t, counter, clk)
	ctx := context.Background()

	for i := 0; i < DefaultLimit+5; i++ {
		_, err := l.Allow(ctx, "alice", "cred-1")
		require.NoError(t, err)
	}
	n, err := counter.Get(ctx, l.key("alice", "cred-1", clk.Now().UnixNano()/int64(time.Minute)))
	require.NoError(t, err)
	require.Equal(t, int64(DefaultLimit), n)
}

func TestLimiterConcurrentAttemptsNeverExceedLimit(t *testing.T) {
	clk := &clock{now: startOfMinute()}
	l := newTestLimiter(t, NewMemoryCounter(clk.Now), clk)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Allow(ctx, "alice", "cred-1")
			if err != nil || !res.Allowed {
				return
			}
			mu.Lock()
			allowed++
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, allowed, DefaultLimit)
	require.Greater(t, allowed, 0)
}

func TestMemoryCounterDiscardsExpiredBuckets(t *testing.T) {
	clk := &clock{now: startOfMinute()}
	c := NewMemoryCounter(clk.Now)
	ctx := context.Background()

	_, _ = c.Incr(ctx, "a", time.Minute)
	_, _ = c.Incr(ctx, "b", time.Minute)
	clk.Advance(2 * time.Minute)

	n, _ := c.Get(ctx, "a")
	require.Zero(t, n)
	_, _ = c.Incr(ctx, "c", time.Minute)
	require.Equal(t, 1, c.Len())
}

func TestMemoryCounterMarkKeepsMaximum(t *testing.T) {
	clk := &clock{now: startOfMinute()}
	c := NewMemoryCounter(clk.Now)
	ctx := context.Background()

	require.NoError(t, c.Mark(ctx, "m", 20, time.Minute))
	require.NoError(t, c.Mark(ctx, "m", 10, time.Minute))
	n, err := c.Get(ctx, "m")
	require.NoError(t, err)
	require.Equal(t, int64(20), n)

	clk.Advance(2 * time.Minute)
	require.NoError(t, c.Mark(ctx, "m", 5, time.Minute))
	n, _ = c.Get(ctx, "m")
	require.Equal(t, int64(5), n)
}
