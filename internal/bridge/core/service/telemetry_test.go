package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
)

func lamp() *model.Shadow {
	return &model.Shadow{
		Username:          "alice",
		EndpointID:        "lamp-1",
		Capabilities:      []model.Capability{model.CapabilityBrightness, model.CapabilityContactSensor},
		State:             map[string]any{},
		DisplayCategories: []string{"LIGHT"},
	}
}

func TestHandleStateMergesValidFields(t *testing.T) {
	f := newFixture(lamp())

	err := f.svc.HandleState(context.Background(), "alice", "lamp-1", map[string]any{
		"brightness": 50.0,
		"contact":    "bad",
	})
	require.NoError(t, err)

	require.Len(t, f.shadows.merged, 1)
	assert.Equal(t, 50.0, f.shadows.merged[0].Set["brightness"])
	assert.NotContains(t, f.shadows.merged[0].Set, "contact")
	assert.Contains(t, f.shadows.merged[0].Set, "time")

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, model.SeverityWarning, f.notifier.sent[0].Severity)
	assert.Contains(t, f.notifier.sent[0].Message, "contact")

	require.Len(t, f.reporter.reports, 1)
	assert.Equal(t, []string{"brightness"}, f.reporter.reports[0])
}

func TestHandleStateAllRejectedStillStampsTime(t *testing.T) {
	f := newFixture(lamp())

	require.NoError(t, f.svc.HandleState(context.Background(), "alice", "lamp-1", map[string]any{"brightness": 900.0}))

	require.Len(t, f.shadows.merged, 1)
	assert.Contains(t, f.shadows.merged[0].Set, "time")
	assert.Len(t, f.notifier.sent, 1)
	assert.Empty(t, f.reporter.reports)
}

func TestHandleStateUnknownDevice(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.svc.HandleState(context.Background(), "alice", "ghost", map[string]any{"power": "ON"}))
	assert.Empty(t, f.shadows.merged)
	assert.Empty(t, f.reporter.reports)
}

func TestHandleStateMergeFailure(t *testing.T) {
	f := newFixture(lamp())
	f.shadows.mergeErr = errors.New("db down")

	err := f.svc.HandleState(context.Background(), "alice", "lamp-1", map[string]any{"brightness": 10.0})
	assert.Error(t, err)
	assert.Empty(t, f.reporter.reports)
	assert.Empty(t, f.notifier.sent)
}

func TestHandleStateAppliesConcurrentDeltasInTurn(t *testing.T) {
	blind := &model.Shadow{
		Username:     "alice",
		EndpointID:   "blind-1",
		Capabilities: []model.Capability{model.CapabilityPercentage},
		State:        map[string]any{"percentage": 50.0},
	}
	f := newFixture(blind)
	// Widen the window between reading the shadow and merging the patch.
	f.shadows.afterFind = func() { time.Sleep(5 * time.Millisecond) }

	const senders = 4
	errs := make(chan error, senders)
	var wg sync.WaitGroup
	for range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.svc.HandleState(context.Background(), "alice", "blind-1", map[string]any{"percentageDelta": 5.0})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := f.shadows.Find(context.Background(), "alice", "blind-1")
	require.NoError(t, err)
	assert.Equal(t, 70.0, got.State["percentage"])
	assert.Len(t, f.reporter.reports, senders)
}

func TestHandleStateDoesNotSerializeAcrossDevices(t *testing.T) {
	a := lamp()
	b := lamp()
	b.EndpointID = "lamp-2"
	f := newFixture(a, b)

	release := make(chan struct{})
	entered := make(chan struct{}, 2)
	f.shadows.afterFind = func() {
		entered <- struct{}{}
		<-release
	}

	done := make(chan error, 2)
	for _, id := range []string{"lamp-1", "lamp-2"} {
		go func() {
			done <- f.svc.HandleState(context.Background(), "alice", id, map[string]any{"brightness": 10.0})
		}()
	}

	// Both devices load their shadow before either one merges.
	for range 2 {
		select {
		case <-entered:
		case <-time.After(time.Second):
			t.Fatal("state patches for different devices were serialized")
		}
	}
	close(release)
	require.NoError(t, <-done)
	require.NoError(t, <-done)
}

func TestHandleStateIgnoresUndeclaredCapabilities(t *testing.T) {
	plain := lamp()
	plain.Capabilities = []model.Capability{model.CapabilityBrightness}
	f := newFixture(plain)

	require.NoError(t, f.svc.HandleState(context.Background(), "alice", "lamp-1", map[string]any{
		"brightness": 50.0,
		"contact":    "bad",
		"mystery":    1.0,
	}))

	require.Len(t, f.shadows.merged, 1)
	assert.Equal(t, 50.0, f.shadows.merged[0].Set["brightness"])
	assert.NotContains(t, f.shadows.merged[0].Set, "contact")
	assert.NotContains(t, f.shadows.merged[0].Set, "mystery")
	assert.Empty(t, f.notifier.sent)
}
