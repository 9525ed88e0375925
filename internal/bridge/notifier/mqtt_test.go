package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
	"github.com/autopeer-io/voicelink/pkg/mqtt/topic"
)

type publish struct {
	topic   string
	qos     int
	retain  bool
	payload []byte
}

type fakePublisher struct {
	sent []publish
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, qos int, retain bool, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, publish{topic: topic, qos: qos, retain: retain, payload: payload})
	return nil
}

func TestPublishCommand(t *testing.T) {
	pub := &fakePublisher{}
	n := NewMQTTNotifier(pub, topic.NewBuilder("vl"), 1)

	err := n.PublishCommand(context.Background(), "alice", "lamp", &model.CommandMessage{
		MessageID: "m-1",
		Source:    model.SourceSingular,
		Directive: json.RawMessage(`{"name":"TurnOn"}`),
	})
	require.NoError(t, err)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "vl/command/alice/lamp", pub.sent[0].topic)
	assert.Equal(t, 1, pub.sent[0].qos)
	assert.False(t, pub.sent[0].retain)
	assert.JSONEq(t, `{"messageId":"m-1","source":"singular","directive":{"name":"TurnOn"}}`, string(pub.sent[0].payload))
}

func TestPublishCommandError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("offline")}
	n := NewMQTTNotifier(pub, topic.NewBuilder(""), 1)

	err := n.PublishCommand(context.Background(), "alice", "lamp", &model.CommandMessage{MessageID: "m-1"})
	assert.Error(t, err)
}

func TestNotifyUser(t *testing.T) {
	pub := &fakePublisher{}
	n := NewMQTTNotifier(pub, topic.NewBuilder(""), 0)

	n.NotifyUser(context.Background(), "alice", "lamp", model.Notification{
		Severity: model.SeverityWarning,
		Message:  "brightness value 150 rejected: out of range",
	})

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "message/alice/lamp", pub.sent[0].topic)
	assert.JSONEq(t, `{"severity":"warning","message":"brightness value 150 rejected: out of range"}`, string(pub.sent[0].payload))
}

func TestNotifyUserSwallowsErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("offline")}
	n := NewMQTTNotifier(pub, topic.NewBuilder(""), 0)

	assert.NotPanics(t, func() {
		n.NotifyUser(context.Background(), "alice", "lamp", model.Notification{Message: "x"})
	})
}
