package sweeper

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"
)

// Expirer expires pending commands older than its deadline and returns how
// many records it removed.
type Expirer interface {
	Sweep(ctx context.Context) int
}

// Sweeper periodically expires pending commands whose acknowledgement never came.
// It runs in the background alongside the servers.
type Sweeper struct {
	Expirer  Expirer
	Log      logr.Logger
	Interval time.Duration
	Clock    clock.WithTicker
}

// Start begins the sweep loop.
// It blocks until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	clk := s.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	s.Log.Info("Starting pending command sweeper", "interval", s.Interval)

	ticker := clk.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			s.sweep(ctx)
		case <-ctx.Done():
			s.Log.Info("Stopping pending command sweeper")
			return nil
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if n := s.Expirer.Sweep(ctx); n > 0 {
		s.Log.V(1).Info("Expired pending commands", "count", n)
	}
}
