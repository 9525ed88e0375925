package service

import (
	"context"
	"net/http"

	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
	"github.com/autopeer-io/voicelink/internal/bridge/core/pending"
	"github.com/autopeer-io/voicelink/internal/pkg/metrics"
	"github.com/autopeer-io/voicelink/pkg/log"
)

// Sweep resolves every pending command older than the deadline, and every
// command whose caller stopped waiting. Batched commands with at least one
// acknowledged device are answered with the partial aggregate; everything
// else gets a gateway timeout. It returns the number of records removed.
func (s *Service) Sweep(ctx context.Context) int {
	now := s.clock.Now()

	var (
		removed    int
		deliveries []delivery
	)
	s.table.Atomically(func(tx pending.Txn) {
		keys := tx.Keys()
		before := len(keys)

		// Primaries first, so that their slots are absorbed or removed with them.
		for _, key := range keys {
			cmd, ok := tx.Get(key)
			if !ok || !cmd.IsPrimary() {
				continue
			}
			if now.Sub(cmd.CreatedAt) < s.deadline && cmd.Sink.Waiting() {
				continue
			}
			deliveries = append(deliveries, expire(tx, cmd))
		}

		// Slots whose primary is already gone.
		for _, key := range keys {
			cmd, ok := tx.Get(key)
			if !ok || cmd.IsPrimary() || now.Sub(cmd.CreatedAt) < s.deadline {
				continue
			}
			if _, ok := tx.Get(cmd.Primary); !ok {
				tx.Remove(key)
			}
		}

		removed = before - len(tx.Keys())
	})

	for _, d := range deliveries {
		metrics.CommandTimeoutsTotal.WithLabelValues(string(d.cmd.Source), d.cause).Inc()
	}
	if len(deliveries) > 0 {
		log.FromContext(ctx).Info("Expired pending commands", "responses", len(deliveries), "removed", removed)
	}

	s.deliverAll(ctx, deliveries)
	return removed
}

func expire(tx pending.Txn, cmd *pending.Command) delivery {
	timeout := delivery{
		cmd:   cmd,
		resp:  pending.Response{Status: http.StatusGatewayTimeout},
		cause: "timeout",
	}

	if cmd.Source != model.SourceBatched {
		tx.Remove(cmd.Key)
		return timeout
	}

	mergeSiblings(tx, cmd)
	removeGroup(tx, cmd)

	if len(cmd.Aggregate.IDs()) == 0 {
		return timeout
	}
	return delivery{
		cmd:   cmd,
		resp:  pending.Response{Status: http.StatusOK, Body: cmd.Aggregate.Clone()},
		cause: "partial",
	}
}
