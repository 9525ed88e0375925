package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
	"github.com/autopeer-io/voicelink/internal/pkg/mqtt/adapter"
	"github.com/autopeer-io/voicelink/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/voicelink/pkg/log"
	pkgmqtt "github.com/autopeer-io/voicelink/pkg/mqtt"
	"github.com/autopeer-io/voicelink/pkg/mqtt/topic"
)

// Service is the part of the core the MQTT ingress drives.
type Service interface {
	HandleAck(ctx context.Context, username, endpointID string, ack *model.Ack) error
	HandleState(ctx context.Context, username, endpointID string, patch map[string]any) error
}

// statePayload is received on state/{user}/{endpointId}.
type statePayload struct {
	State map[string]any `json:"state"`
}

// Server implements the MQTT ingress layer.
type Server struct {
	client pkgmqtt.Client
	topics *topic.Builder
	svc    Service

	qos        int
	shareGroup string
}

// Option configures the server.
type Option func(*Server)

// WithQoS sets the subscription QoS.
func WithQoS(qos int) Option {
	return func(s *Server) { s.qos = qos }
}

// WithStateShareGroup consumes state telemetry through a shared subscription.
func WithStateShareGroup(group string) Option {
	return func(s *Server) { s.shareGroup = group }
}

// NewServer creates a new MQTT server.
func NewServer(client pkgmqtt.Client, builder *topic.Builder, svc Service, opts ...Option) *Server {
	s := &Server{
		client: client,
		topics: builder,
		svc:    svc,
		qos:    1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start connects to the broker and subscribes to topics.
func (s *Server) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return err
	}

	defer func() {
		log.Info("Disconnecting MQTT client...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.client.Disconnect(shutdownCtx)
	}()

	log.Info("Waiting for MQTT connection...")
	if err := s.client.AwaitConnection(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	log.Info("MQTT Connected")

	if err := s.initMQTTSubscriptions(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	return nil
}

func (s *Server) initMQTTSubscriptions(ctx context.Context) error {
	// Acks must reach the instance holding the pending command, so only
	// telemetry may be consumed through a shared subscription.
	stateTopics := s.topics
	if s.shareGroup != "" {
		stateTopics = s.topics.Shared(s.shareGroup)
	}

	subscriptions := map[string]adapter.HandlerFunc{
		s.topics.BuildWildcard(paths.Response): adapter.JSONHandler(s.handleAck),
		stateTopics.BuildWildcard(paths.State): adapter.JSONHandler(s.handleState),
	}

	for fullTopic, handler := range subscriptions {
		if err := s.client.Subscribe(ctx, fullTopic, s.qos, func(c context.Context, t string, p []byte) {
			if handleErr := handler(c, t, p); handleErr != nil {
				log.Error(handleErr, "Handler execution failed", "topic", t)
			}
		}); err != nil {
			return fmt.Errorf("failed to subscribe to topic: %s, err: %w", fullTopic, err)
		}
	}

	return nil
}

func (s *Server) handleAck(ctx context.Context, t string, ack *model.Ack) error {
	addr, err := s.topics.Parse(t)
	if err != nil {
		return err
	}
	return s.svc.HandleAck(log.IntoContext(ctx, log.WithValues("topic", t)), addr.Username, addr.EndpointID, ack)
}

func (s *Server) handleState(ctx context.Context, t string, msg *statePayload) error {
	addr, err := s.topics.Parse(t)
	if err != nil {
		return err
	}
	if msg.State == nil {
		return fmt.Errorf("state payload on %s has no state object", t)
	}
	return s.svc.HandleState(log.IntoContext(ctx, log.WithValues("topic", t)), addr.Username, addr.EndpointID, msg.State)
}
