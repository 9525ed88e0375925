package service

import (
	"context"
	"errors"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/voicelink/internal/bridge/core"
	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
	"github.com/autopeer-io/voicelink/internal/bridge/core/pending"
)

type published struct {
	user     string
	endpoint string
	msg      *model.CommandMessage
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (f *fakePublisher) PublishCommand(_ context.Context, user, endpoint string, msg *model.CommandMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{user: user, endpoint: endpoint, msg: msg})
	return nil
}

type fakeShadows struct {
	mu       sync.Mutex
	shadows  map[string]*model.Shadow
	merged   []model.StatePatch
	mergeErr error

	// afterFind runs outside the lock once a shadow was loaded.
	afterFind func()
}

func newFakeShadows(shadows ...*model.Shadow) *fakeShadows {
	f := &fakeShadows{shadows: map[string]*model.Shadow{}}
	for _, s := range shadows {
		f.shadows[s.Username+"/"+s.EndpointID] = s
	}
	return f
}

func (f *fakeShadows) Find(_ context.Context, user, endpoint string) (*model.Shadow, error) {
	f.mu.Lock()
	s, ok := f.shadows[user+"/"+endpoint]
	if !ok {
		f.mu.Unlock()
		return nil, core.ErrNotFound
	}
	cp := *s
	cp.State = maps.Clone(s.State)
	hook := f.afterFind
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &cp, nil
}

func (f *fakeShadows) MergeState(_ context.Context, user, endpoint string, patch model.StatePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mergeErr != nil {
		return f.mergeErr
	}
	f.merged = append(f.merged, patch)
	if s, ok := f.shadows[user+"/"+endpoint]; ok {
		s.State = patch.Apply(maps.Clone(s.State))
	}
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (f *fakeNotifier) NotifyUser(_ context.Context, _, _ string, n model.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
}

type fakeReporter struct {
	mu      sync.Mutex
	reports [][]string
}

func (f *fakeReporter) Report(_ context.Context, _ *model.Shadow, changed []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, changed)
}

type fixture struct {
	svc       *Service
	clock     *testingclock.FakeClock
	publisher *fakePublisher
	shadows   *fakeShadows
	notifier  *fakeNotifier
	reporter  *fakeReporter
}

func newFixture(shadows ...*model.Shadow) *fixture {
	f := &fixture{
		clock:     testingclock.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
		publisher: &fakePublisher{},
		shadows:   newFakeShadows(shadows...),
		notifier:  &fakeNotifier{},
		reporter:  &fakeReporter{},
	}
	f.svc = New(pending.NewTable(), f.publisher, f.shadows, f.notifier, f.reporter, WithClock(f.clock))
	return f
}

// await returns the delivered response, failing if none arrives quickly.
func await(t *testing.T, sink *pending.Sink) pending.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := sink.Wait(ctx)
	require.NoError(t, err)
	return resp
}

func requireWaiting(t *testing.T, sink *pending.Sink) {
	t.Helper()
	require.True(t, sink.Waiting(), "sink should still be waiting")
}

var errBroker = errors.New("broker unavailable")
