package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/autopeer-io/voicelink/internal/bridge/core"
	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
	"github.com/autopeer-io/voicelink/internal/bridge/core/state"
	"github.com/autopeer-io/voicelink/internal/pkg/metrics"
	"github.com/autopeer-io/voicelink/pkg/log"
)

// HandleState validates a telemetry patch, merges it into the device shadow,
// notifies the user about rejected fields and reports the change downstream.
func (s *Service) HandleState(ctx context.Context, username, endpointID string, patch map[string]any) error {
	logger := log.FromContext(ctx).WithValues("user", username, "endpointId", endpointID)

	shadow, res, err := s.applyState(ctx, username, endpointID, patch)
	if errors.Is(err, core.ErrNotFound) {
		logger.Warn("State update for unknown device, dropping")
		return nil
	}
	if err != nil {
		return err
	}
	metrics.StatePatchesTotal.Inc()

	for _, r := range res.Rejections {
		metrics.StateRejectionsTotal.WithLabelValues(string(r.Attribute)).Inc()
		logger.Info("Rejected state field", "attribute", r.Attribute, "reason", r.Reason)
		s.notifier.NotifyUser(ctx, username, endpointID, model.Notification{
			Severity: model.SeverityWarning,
			Message:  r.Message(),
		})
	}
	if len(res.Ignored) > 0 {
		logger.Debug("Ignored state fields", "keys", res.Ignored)
	}

	if len(res.Changed) == 0 || s.reporter == nil {
		return nil
	}

	shadow.State = res.State
	s.reporter.Report(ctx, shadow, res.Changed)
	return nil
}

// applyState runs find, validate and merge under the device lock. Deltas are
// computed against the stored state, so concurrent patches must not interleave.
func (s *Service) applyState(ctx context.Context, username, endpointID string, patch map[string]any) (*model.Shadow, state.Result, error) {
	unlock := s.lockDevice(username, endpointID)
	defer unlock()

	shadow, err := s.shadows.Find(ctx, username, endpointID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, state.Result{}, err
	}
	if err != nil {
		return nil, state.Result{}, fmt.Errorf("failed to load shadow %s/%s: %w", username, endpointID, err)
	}

	res := state.Validate(shadow, patch, s.clock.Now())

	if err := s.shadows.MergeState(ctx, username, endpointID, res.Patch); err != nil {
		return nil, state.Result{}, fmt.Errorf("failed to merge state of %s/%s: %w", username, endpointID, err)
	}
	return shadow, res, nil
}
