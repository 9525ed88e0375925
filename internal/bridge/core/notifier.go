package core

import (
	"context"

	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
)

// CommandPublisher sends commands to home-automation controllers.
// It is implemented by the MQTT outbound adapter.
type CommandPublisher interface {
	PublishCommand(ctx context.Context, username, endpointID string, msg *model.CommandMessage) error
}

// UserNotifier delivers out-of-band warnings to a user.
// Delivery is fire-and-forget: failures are logged by the implementation.
type UserNotifier interface {
	NotifyUser(ctx context.Context, username, endpointID string, n model.Notification)
}

// StateReporter forwards state changes to external integrations.
type StateReporter interface {
	Report(ctx context.Context, shadow *model.Shadow, changed []string)
}
