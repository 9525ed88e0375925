package report

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/voicelink/internal/bridge/core"
	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
	"github.com/autopeer-io/voicelink/internal/pkg/metrics"
	"github.com/autopeer-io/voicelink/pkg/log"
)

var (
	// ErrLinkRemoved is returned when the integration no longer knows the user.
	ErrLinkRemoved = errors.New("integration link removed")

	// ErrDisabled is returned when pushing through a disabled integration.
	ErrDisabled = errors.New("integration disabled")
)

// Reporter pushes state changes to one downstream integration.
type Reporter interface {
	// Name is the integration name used in account links.
	Name() string

	// Enabled reports whether the integration is configured.
	Enabled() bool

	// Eligible reports whether the device may be reported.
	Eligible(shadow *model.Shadow) bool

	// Push sends the changed attributes of shadow.
	Push(ctx context.Context, account *model.Account, shadow *model.Shadow, changed []string) error
}

var _ core.StateReporter = (*Fanout)(nil)

// Fanout decides, per integration, whether a state change is forwarded.
// Integrations are isolated: one failing or being skipped never affects another.
type Fanout struct {
	accounts  core.AccountStore
	reporters []Reporter
}

// NewFanout creates a fanout over the given reporters.
func NewFanout(accounts core.AccountStore, reporters ...Reporter) *Fanout {
	return &Fanout{accounts: accounts, reporters: reporters}
}

// Report forwards the change to every enabled, linked and eligible integration.
func (f *Fanout) Report(ctx context.Context, shadow *model.Shadow, changed []string) {
	var active []Reporter
	for _, r := range f.reporters {
		if r.Enabled() {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return
	}

	logger := log.FromContext(ctx).WithValues("user", shadow.Username, "endpointId", shadow.EndpointID)

	account, err := f.accounts.Find(ctx, shadow.Username)
	if err != nil {
		logger.Error(err, "Failed to load account, skipping state report")
		return
	}

	// Every function returns nil, so one integration cannot cancel the other.
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range active {
		g.Go(func() error {
			f.push(gctx, logger.WithValues("integration", r.Name()), r, account, shadow, changed)
			return nil
		})
	}
	_ = g.Wait()
}

func (f *Fanout) push(ctx context.Context, logger log.Logger, r Reporter, account *model.Account, shadow *model.Shadow, changed []string) {
	if !account.IsLinked(r.Name()) {
		logger.Debug("Account not linked, skipping state report")
		return
	}
	if !r.Eligible(shadow) {
		logger.Debug("Device not eligible, skipping state report", "categories", shadow.DisplayCategories)
		return
	}

	err := r.Push(ctx, account, shadow, changed)
	switch {
	case err == nil:
		metrics.ReportsTotal.WithLabelValues(r.Name(), "success").Inc()
		logger.Debug("Reported state change", "changed", changed)
	case errors.Is(err, ErrLinkRemoved):
		metrics.ReportsTotal.WithLabelValues(r.Name(), "unlinked").Inc()
		logger.Warn("Integration link was removed remotely, unlinking")
		if err := f.accounts.Unlink(ctx, account.Username, r.Name()); err != nil {
			logger.Error(err, "Failed to unlink integration")
		}
	default:
		metrics.ReportsTotal.WithLabelValues(r.Name(), "failure").Inc()
		logger.Error(err, "Failed to report state change")
	}
}
