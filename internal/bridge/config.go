package bridge

import (
	"context"
	"fmt"
	"os"

	"github.com/autopeer-io/voicelink/internal/bridge/core/pending"
	"github.com/autopeer-io/voicelink/internal/bridge/core/service"
	"github.com/autopeer-io/voicelink/internal/bridge/notifier"
	"github.com/autopeer-io/voicelink/internal/bridge/report"
	"github.com/autopeer-io/voicelink/internal/bridge/server"
	"github.com/autopeer-io/voicelink/internal/bridge/server/http"
	"github.com/autopeer-io/voicelink/internal/bridge/server/mqtt"
	"github.com/autopeer-io/voicelink/internal/bridge/storage"
	"github.com/autopeer-io/voicelink/internal/bridge/sweeper"
	"github.com/autopeer-io/voicelink/pkg/log"
	pkgmqtt "github.com/autopeer-io/voicelink/pkg/mqtt"
	"github.com/autopeer-io/voicelink/pkg/mqtt/topic"
	"github.com/autopeer-io/voicelink/pkg/options"
)

type Config struct {
	HttpOptions     *options.HttpOptions
	MqttOptions     *options.MqttOptions
	StoreOptions    *options.StoreOptions
	PostgresOptions *options.PostgresOptions
	S3Options       *options.S3Options
	SweeperOptions  *options.SweeperOptions
	AlexaOptions    *options.AlexaOptions
	GoogleOptions   *options.GoogleOptions
}

// NewBridge wires the adapters around the core service.
func (cfg *Config) NewBridge(ctx context.Context) (*Bridge, error) {
	mqttCfg := cfg.MqttOptions.ToClientConfig()
	if mqttCfg.ClientID == "" {
		host, _ := os.Hostname()
		mqttCfg.ClientID = fmt.Sprintf("voicelink-%s-%d", host, os.Getpid())
	}
	mqttClient, err := pkgmqtt.NewClient(mqttCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init mqtt client: %w", err)
	}

	topicBuilder := topic.NewBuilder(cfg.MqttOptions.TopicRoot)

	// Infrastructure: Storage (Secondary Adapter)
	stores, err := storage.Open(ctx, cfg.StoreOptions, cfg.PostgresOptions, cfg.S3Options)
	if err != nil {
		return nil, fmt.Errorf("failed to init stores: %w", err)
	}

	// Infrastructure: Reporting integrations (Secondary Adapter)
	google, err := report.NewGoogle(cfg.GoogleOptions)
	if err != nil {
		_ = stores.Close()
		return nil, fmt.Errorf("failed to init google reporter: %w", err)
	}
	fanout := report.NewFanout(stores.Accounts, report.NewAlexa(cfg.AlexaOptions), google)

	// Infrastructure: Notifier (Secondary Adapter)
	notifierAdapter := notifier.NewMQTTNotifier(mqttClient, topicBuilder, cfg.MqttOptions.QoS)

	// Core Domain Service
	svc := service.New(
		pending.NewTable(),
		notifierAdapter,
		stores.Shadows,
		notifierAdapter,
		fanout,
		service.WithDeadline(cfg.SweeperOptions.Deadline),
	)

	// Ingress Servers (Primary Adapters)
	mqttServer := mqtt.NewServer(mqttClient, topicBuilder, svc,
		mqtt.WithQoS(cfg.MqttOptions.QoS),
		mqtt.WithStateShareGroup(cfg.MqttOptions.StateShareGroup),
	)
	httpServer := http.NewServer(cfg.HttpOptions, svc, mqttClient.IsConnected)
	sweep := &sweeper.Sweeper{
		Expirer:  svc,
		Log:      log.WithName("sweeper").Logr(),
		Interval: cfg.SweeperOptions.Interval,
	}

	return &Bridge{
		serverManager: server.NewManager(mqttServer, httpServer, sweep),
		stores:        stores,
	}, nil
}
