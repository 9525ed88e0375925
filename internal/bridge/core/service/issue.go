package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
	"github.com/autopeer-io/voicelink/internal/bridge/core/pending"
	"github.com/autopeer-io/voicelink/internal/pkg/metrics"
	"github.com/autopeer-io/voicelink/pkg/log"
)

// ErrInvalidCommand is returned for commands missing required fields.
var ErrInvalidCommand = errors.New("invalid command")

// IssueSingularCommand enrolls one pending command keyed by the message id
// and publishes it to the endpoint. The returned sink yields the response.
func (s *Service) IssueSingularCommand(ctx context.Context, cmd *model.SingularCommand) (*pending.Sink, error) {
	if cmd.MessageID == "" || cmd.EndpointID == "" || cmd.User == "" {
		return nil, fmt.Errorf("%w: user, endpoint and message id are required", ErrInvalidCommand)
	}

	sink := pending.NewSink()
	rec := &pending.Command{
		Source:        model.SourceSingular,
		User:          cmd.User,
		UserID:        cmd.UserID,
		EndpointID:    cmd.EndpointID,
		RequestID:     cmd.MessageID,
		Sink:          sink,
		Response:      cmd.Response,
		ErrorResponse: cmd.ErrorResponse,
		CreatedAt:     s.clock.Now(),
	}

	// Enroll before publishing so that an immediate ack finds its record.
	if err := s.table.Put(cmd.MessageID, rec); err != nil {
		return nil, fmt.Errorf("failed to enroll command %s: %w", cmd.MessageID, err)
	}

	msg := &model.CommandMessage{
		MessageID: cmd.MessageID,
		Source:    model.SourceSingular,
		Directive: cmd.Directive,
	}
	if err := s.publisher.PublishCommand(ctx, cmd.User, cmd.EndpointID, msg); err != nil {
		s.table.Remove(cmd.MessageID)
		return nil, fmt.Errorf("failed to publish command %s: %w", cmd.MessageID, err)
	}

	metrics.CommandIssuedTotal.WithLabelValues(string(model.SourceSingular)).Inc()
	log.FromContext(ctx).Debug("Issued singular command", "key", cmd.MessageID, "endpointId", cmd.EndpointID)
	return sink, nil
}

// IssueBatchedCommand enrolls one pending command per device. The first
// device's record owns the sink and the aggregated response; the others are
// acknowledgement slots.
func (s *Service) IssueBatchedCommand(ctx context.Context, cmd *model.BatchedCommand) (*pending.Sink, error) {
	if err := validateBatched(cmd); err != nil {
		return nil, err
	}

	ids := cmd.DeviceIDs()
	primaryKey := pending.BatchedKey(cmd.RequestID, ids[0])
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, pending.BatchedKey(cmd.RequestID, id))
	}

	sink := pending.NewSink()
	now := s.clock.Now()

	var err error
	s.table.Atomically(func(tx pending.Txn) {
		for i, id := range ids {
			rec := &pending.Command{
				Source:     model.SourceBatched,
				User:       cmd.User,
				UserID:     cmd.UserID,
				EndpointID: id,
				RequestID:  cmd.RequestID,
				Primary:    primaryKey,
				CreatedAt:  now,
			}
			if i == 0 {
				rec.Sink = sink
				rec.Aggregate = model.NewBatchedResponse(cmd.RequestID, cmd.States)
				rec.Siblings = slices.Clone(ids[1:])
			}
			if err = tx.Put(keys[i], rec); err != nil {
				for _, k := range keys[:i] {
					tx.Remove(k)
				}
				return
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enroll command %s: %w", cmd.RequestID, err)
	}

	for _, d := range cmd.Devices {
		msg := &model.CommandMessage{
			MessageID: cmd.RequestID,
			Source:    model.SourceBatched,
			Directive: d.Directive,
		}
		if err := s.publisher.PublishCommand(ctx, cmd.User, d.ID, msg); err != nil {
			s.table.Atomically(func(tx pending.Txn) {
				for _, k := range keys {
					tx.Remove(k)
				}
			})
			return nil, fmt.Errorf("failed to publish command %s to %s: %w", cmd.RequestID, d.ID, err)
		}
	}

	metrics.CommandIssuedTotal.WithLabelValues(string(model.SourceBatched)).Inc()
	log.FromContext(ctx).Debug("Issued batched command", "requestId", cmd.RequestID, "devices", len(ids))
	return sink, nil
}

func validateBatched(cmd *model.BatchedCommand) error {
	if cmd.User == "" || cmd.RequestID == "" {
		return fmt.Errorf("%w: user and request id are required", ErrInvalidCommand)
	}
	if len(cmd.Devices) == 0 {
		return fmt.Errorf("%w: no target devices", ErrInvalidCommand)
	}

	seen := make(map[string]struct{}, len(cmd.Devices))
	for _, d := range cmd.Devices {
		if d.ID == "" {
			return fmt.Errorf("%w: empty device id", ErrInvalidCommand)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("%w: device %s listed twice", ErrInvalidCommand, d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return nil
}
