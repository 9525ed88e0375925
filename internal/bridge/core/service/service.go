package service

import (
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/voicelink/internal/bridge/core"
	"github.com/autopeer-io/voicelink/internal/bridge/core/pending"
)

// DefaultDeadline is how long a command waits for its acknowledgement.
const DefaultDeadline = 2 * time.Second

// Service implements the bridge use cases: issuing commands, correlating
// acknowledgements, expiring stale commands and ingesting telemetry.
type Service struct {
	table     *pending.Table
	publisher core.CommandPublisher
	shadows   core.ShadowStore
	notifier  core.UserNotifier
	reporter  core.StateReporter

	clock    clock.PassiveClock
	deadline time.Duration

	// devices holds one *sync.Mutex per "username/endpointId" so that state
	// patches for a device are applied one at a time.
	devices sync.Map
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used to stamp and expire commands.
func WithClock(c clock.PassiveClock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithDeadline overrides DefaultDeadline.
func WithDeadline(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.deadline = d
		}
	}
}

// New creates the core service.
func New(
	table *pending.Table,
	publisher core.CommandPublisher,
	shadows core.ShadowStore,
	notifier core.UserNotifier,
	reporter core.StateReporter,
	opts ...Option,
) *Service {
	s := &Service{
		table:     table,
		publisher: publisher,
		shadows:   shadows,
		notifier:  notifier,
		reporter:  reporter,
		clock:     clock.RealClock{},
		deadline:  DefaultDeadline,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lockDevice serializes telemetry for one device and returns the unlock func.
func (s *Service) lockDevice(username, endpointID string) func() {
	v, _ := s.devices.LoadOrStore(username+"/"+endpointID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Pending returns the number of commands awaiting acknowledgement.
func (s *Service) Pending() int {
	return s.table.Len()
}
