package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
	"github.com/autopeer-io/voicelink/internal/bridge/core/pending"
	"github.com/autopeer-io/voicelink/internal/pkg/metrics"
	"github.com/autopeer-io/voicelink/pkg/log"
)

// ErrInvalidAck is returned for acknowledgements without a message id.
var ErrInvalidAck = errors.New("acknowledgement without message id")

// HandleAck correlates an acknowledgement received from endpointID with the
// pending command it completes. Stale or spurious acks are logged and dropped.
func (s *Service) HandleAck(ctx context.Context, username, endpointID string, ack *model.Ack) error {
	if ack.MessageID == "" {
		return ErrInvalidAck
	}

	source := ack.Source
	if source == "" {
		source = model.SourceSingular
	}

	var (
		matched    bool
		deliveries []delivery
	)
	switch source {
	case model.SourceBatched:
		key := pending.BatchedKey(ack.MessageID, endpointID)
		s.table.Atomically(func(tx pending.Txn) {
			matched, deliveries = routeBatched(tx, key, username, endpointID, ack.Success)
		})
	default:
		s.table.Atomically(func(tx pending.Txn) {
			matched, deliveries = routeSingular(tx, ack.MessageID, username, ack.Success)
		})
	}

	logger := log.FromContext(ctx).WithValues("messageId", ack.MessageID, "user", username, "endpointId", endpointID)
	if !matched {
		metrics.CommandAcksTotal.WithLabelValues(string(source), "unmatched").Inc()
		logger.Info("No pending command for acknowledgement, dropping", "source", source)
		return nil
	}

	result := "success"
	if !ack.Success {
		result = "failure"
	}
	metrics.CommandAcksTotal.WithLabelValues(string(source), result).Inc()

	s.deliverAll(log.IntoContext(ctx, logger), deliveries)
	return nil
}

func routeSingular(tx pending.Txn, key, username string, success bool) (bool, []delivery) {
	cmd, ok := tx.Get(key)
	if !ok || cmd.Source != model.SourceSingular || cmd.User != username {
		return false, nil
	}
	tx.Remove(key)

	resp := pending.Response{Status: http.StatusOK, Body: rawBody(cmd.Response)}
	cause := "ack"
	if !success {
		resp = pending.Response{Status: http.StatusServiceUnavailable, Body: rawBody(cmd.ErrorResponse)}
		cause = "nack"
	}
	return true, []delivery{{cmd: cmd, resp: resp, cause: cause}}
}

// routeBatched records the ack of one device and answers the caller once the
// primary and every sibling acknowledged, or at the first failure.
func routeBatched(tx pending.Txn, key, username, endpointID string, success bool) (bool, []delivery) {
	cmd, ok := tx.Get(key)
	if !ok || cmd.Source != model.SourceBatched || cmd.User != username {
		return false, nil
	}

	primary, ok := tx.Get(cmd.Primary)
	if !ok {
		// The caller was already answered; the slot has nothing left to do.
		tx.Remove(key)
		return true, nil
	}

	if !success {
		body := primary.Aggregate.Clone()
		body.Downgrade()
		removeGroup(tx, primary)
		return true, []delivery{{
			cmd:   primary,
			resp:  pending.Response{Status: http.StatusOK, Body: body},
			cause: "nack",
		}}
	}

	cmd.Acknowledged = true
	if cmd == primary {
		primary.Aggregate.AddID(endpointID)
	}

	incomplete := mergeSiblings(tx, primary)
	if !primary.Acknowledged || incomplete {
		return true, nil
	}

	tx.Remove(primary.Key)
	return true, []delivery{{
		cmd:   primary,
		resp:  pending.Response{Status: http.StatusOK, Body: primary.Aggregate.Clone()},
		cause: "ack",
	}}
}

// mergeSiblings folds every acknowledged sibling into the primary's response
// and deletes its slot. Absent siblings count as settled. It reports whether
// any sibling is still waiting.
func mergeSiblings(tx pending.Txn, primary *pending.Command) bool {
	incomplete := false
	for _, id := range primary.Siblings {
		key := pending.BatchedKey(primary.RequestID, id)
		sib, ok := tx.Get(key)
		if !ok {
			continue
		}
		if !sib.Acknowledged {
			incomplete = true
			continue
		}
		primary.Aggregate.AddID(id)
		tx.Remove(key)
	}
	return incomplete
}

// removeGroup deletes the primary and every sibling slot.
func removeGroup(tx pending.Txn, primary *pending.Command) {
	tx.Remove(primary.Key)
	for _, id := range primary.Siblings {
		tx.Remove(pending.BatchedKey(primary.RequestID, id))
	}
}
