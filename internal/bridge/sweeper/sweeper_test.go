package sweeper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

type countingExpirer struct {
	calls atomic.Int32
}

func (c *countingExpirer) Sweep(context.Context) int {
	c.calls.Add(1)
	return 1
}

func TestSweeperTicks(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	exp := &countingExpirer{}
	s := &Sweeper{Expirer: exp, Log: logr.Discard(), Interval: 500 * time.Millisecond, Clock: clk}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)
	require.Equal(t, int32(0), exp.calls.Load())

	clk.Step(500 * time.Millisecond)
	require.Eventually(t, func() bool { return exp.calls.Load() == 1 }, time.Second, time.Millisecond)

	clk.Step(500 * time.Millisecond)
	require.Eventually(t, func() bool { return exp.calls.Load() == 2 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
