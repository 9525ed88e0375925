package app

import (
	"fmt"

	"github.com/spf13/viper"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/voicelink/cmd/voicelink/app/options"
	"github.com/autopeer-io/voicelink/pkg/app"
	"github.com/autopeer-io/voicelink/pkg/log"
)

const (
	commandName = "voicelink"
	commandDesc = `Voicelink bridges voice assistant platforms to home-automation
controllers over MQTT.

It turns voice directives into device commands, correlates the controllers'
acknowledgements back to the waiting request, keeps device shadows up to
date from state telemetry and forwards state changes to the linked voice
integrations.`
)

func NewApp() *app.App {
	opts := options.NewBridgeOptions()
	application := app.NewApp(
		commandName,
		"Launch the voicelink bridge",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithConfigReload(reloadLogLevel),
		app.WithRunFunc(run(opts)),
	)
	return application
}

// reloadLogLevel applies a changed log level without a restart. Other
// settings take effect on the next start.
func reloadLogLevel() {
	if level := viper.GetString("log.level"); level != "" {
		log.SetLevel(level)
		log.Info("Applied log level from configuration", "level", level)
	}
}

func run(opts *options.BridgeOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)

		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		bridge, err := cfg.NewBridge(ctx)
		if err != nil {
			return fmt.Errorf("failed to create bridge: %w", err)
		}

		return bridge.Run(ctx)
	}
}
