package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
)

func TestSweepSingularTimeout(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	before := f.svc.Pending()
	sink, err := f.svc.IssueSingularCommand(ctx, singular("m-1"))
	require.NoError(t, err)

	// Sweeps every 500ms: nothing before the deadline.
	for i := 0; i < 3; i++ {
		f.clock.Step(500 * time.Millisecond)
		assert.Zero(t, f.svc.Sweep(ctx))
		requireWaiting(t, sink)
	}

	f.clock.Step(500 * time.Millisecond)
	assert.Equal(t, 1, f.svc.Sweep(ctx))

	resp := await(t, sink)
	assert.Equal(t, http.StatusGatewayTimeout, resp.Status)
	assert.Nil(t, resp.Body)
	assert.Equal(t, before, f.svc.Pending())
}

func TestSweepBatchedPartialAggregation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sink, err := f.svc.IssueBatchedCommand(ctx, batched("r-1", "A", "B", "C"))
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleAck(ctx, "alice", "A", ack("r-1", model.SourceBatched, true)))
	require.NoError(t, f.svc.HandleAck(ctx, "alice", "B", ack("r-1", model.SourceBatched, true)))

	f.clock.Step(2 * time.Second)
	f.svc.Sweep(ctx)

	resp := await(t, sink)
	assert.Equal(t, http.StatusOK, resp.Status)
	body := batchedBody(t, resp)
	assert.Equal(t, []string{"A", "B"}, body.IDs())
	assert.Equal(t, model.StatusSuccess, body.Payload.Commands[0].Status)
	assert.Zero(t, f.svc.Pending())
}

func TestSweepBatchedPartialFromSiblingOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sink, err := f.svc.IssueBatchedCommand(ctx, batched("r-1", "A", "B"))
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleAck(ctx, "alice", "B", ack("r-1", model.SourceBatched, true)))

	f.clock.Step(2 * time.Second)
	f.svc.Sweep(ctx)

	body := batchedBody(t, await(t, sink))
	assert.Equal(t, []string{"B"}, body.IDs())
	assert.Zero(t, f.svc.Pending())
}

func TestSweepBatchedWithoutAcksTimesOut(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sink, err := f.svc.IssueBatchedCommand(ctx, batched("r-1", "A", "B", "C"))
	require.NoError(t, err)

	f.clock.Step(2 * time.Second)
	assert.Equal(t, 3, f.svc.Sweep(ctx))

	assert.Equal(t, http.StatusGatewayTimeout, await(t, sink).Status)
	assert.Zero(t, f.svc.Pending())
}

func TestSweepLeavesFreshCommands(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	old, err := f.svc.IssueSingularCommand(ctx, singular("m-old"))
	require.NoError(t, err)

	f.clock.Step(1500 * time.Millisecond)
	fresh, err := f.svc.IssueSingularCommand(ctx, singular("m-new"))
	require.NoError(t, err)

	f.clock.Step(500 * time.Millisecond)
	assert.Equal(t, 1, f.svc.Sweep(ctx))

	assert.Equal(t, http.StatusGatewayTimeout, await(t, old).Status)
	requireWaiting(t, fresh)
	assert.Equal(t, 1, f.svc.Pending())
}

func TestSweepToleratesAbandonedSink(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sink, err := f.svc.IssueSingularCommand(ctx, singular("m-1"))
	require.NoError(t, err)
	require.True(t, sink.Abandon())

	f.clock.Step(2 * time.Second)
	assert.Equal(t, 1, f.svc.Sweep(ctx))
	assert.Zero(t, f.svc.Pending())
}

func TestWithDeadline(t *testing.T) {
	f := newFixture()
	f.svc = New(f.svc.table, f.publisher, f.shadows, f.notifier, f.reporter,
		WithClock(f.clock), WithDeadline(5*time.Second))
	ctx := context.Background()
	_, err := f.svc.IssueSingularCommand(ctx, singular("m-1"))
	require.NoError(t, err)

	f.clock.Step(4 * time.Second)
	assert.Zero(t, f.svc.Sweep(ctx))
	f.clock.Step(time.Second)
	assert.Equal(t, 1, f.svc.Sweep(ctx))
}

func TestSweepReleasesAbandonedCommandsBeforeDeadline(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	gone, err := f.svc.IssueSingularCommand(ctx, singular("m-1"))
	require.NoError(t, err)
	_, err = f.svc.IssueBatchedCommand(ctx, batched("r-1", "lamp-1", "lamp-2"))
	require.NoError(t, err)
	live, err := f.svc.IssueSingularCommand(ctx, singular("m-2"))
	require.NoError(t, err)
	require.Equal(t, 4, f.svc.Pending())

	require.True(t, gone.Abandon())

	assert.Equal(t, 1, f.svc.Sweep(ctx))
	assert.Equal(t, 3, f.svc.Pending())
	requireWaiting(t, live)
}
