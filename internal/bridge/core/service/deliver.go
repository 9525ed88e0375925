package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/autopeer-io/voicelink/internal/bridge/core/pending"
	"github.com/autopeer-io/voicelink/internal/pkg/metrics"
	"github.com/autopeer-io/voicelink/pkg/log"
)

// delivery is a response collected under the table lock and sent after it.
type delivery struct {
	cmd   *pending.Command
	resp  pending.Response
	cause string
}

func (s *Service) deliverAll(ctx context.Context, deliveries []delivery) {
	for _, d := range deliveries {
		s.deliver(ctx, d)
	}
}

func (s *Service) deliver(ctx context.Context, d delivery) {
	logger := log.FromContext(ctx).WithValues(
		"key", d.cmd.Key,
		"user", d.cmd.User,
		"source", d.cmd.Source,
		"status", d.resp.Status,
	)

	err := d.cmd.Sink.Deliver(ctx, d.resp)
	switch {
	case err == nil:
		logger.Debug("Delivered command response", "cause", d.cause)
	case errors.Is(err, pending.ErrSinkAbandoned):
		metrics.SinkDeliveryFailuresTotal.WithLabelValues("abandoned").Inc()
		logger.Warn("Caller is gone, dropping command response", "cause", d.cause)
	case errors.Is(err, pending.ErrSinkConsumed):
		metrics.SinkDeliveryFailuresTotal.WithLabelValues("consumed").Inc()
		logger.Error(err, "Command response delivered twice", "cause", d.cause)
	default:
		metrics.SinkDeliveryFailuresTotal.WithLabelValues("error").Inc()
		logger.Error(err, "Failed to deliver command response", "cause", d.cause)
	}
}

func rawBody(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
