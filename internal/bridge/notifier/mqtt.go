package notifier

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/autopeer-io/voicelink/internal/bridge/core"
	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
	"github.com/autopeer-io/voicelink/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/voicelink/pkg/log"
	pkgmqtt "github.com/autopeer-io/voicelink/pkg/mqtt"
	"github.com/autopeer-io/voicelink/pkg/mqtt/topic"
)

var (
	_ core.CommandPublisher = (*MQTTNotifier)(nil)
	_ core.UserNotifier     = (*MQTTNotifier)(nil)
)

// MQTTNotifier publishes commands and user warnings to controllers.
type MQTTNotifier struct {
	publisher pkgmqtt.Publisher
	topics    *topic.Builder
	qos       int
}

func NewMQTTNotifier(publisher pkgmqtt.Publisher, builder *topic.Builder, qos int) *MQTTNotifier {
	return &MQTTNotifier{
		publisher: publisher,
		topics:    builder,
		qos:       qos,
	}
}

// PublishCommand sends msg on command/{user}/{endpointId}. Commands are never
// retained: a controller that reconnects late must not replay a stale directive.
func (n *MQTTNotifier) PublishCommand(ctx context.Context, username, endpointID string, msg *model.CommandMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	t := n.topics.Build(paths.Command, username, endpointID)
	return n.publisher.Publish(ctx, t, n.qos, false, payload)
}

func (n *MQTTNotifier) NotifyUser(ctx context.Context, username, endpointID string, notification model.Notification) {
	t := n.topics.Build(paths.Message, username, endpointID)

	payload, err := json.Marshal(notification)
	if err != nil {
		log.Error(err, "Failed to encode notification", "topic", t)
		return
	}

	if err := n.publisher.Publish(ctx, t, n.qos, false, payload); err != nil {
		log.Error(err, "Failed to publish notification", "topic", t)
	}
}
