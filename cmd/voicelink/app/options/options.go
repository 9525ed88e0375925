package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/voicelink/internal/bridge"
	"github.com/autopeer-io/voicelink/pkg/app"
	"github.com/autopeer-io/voicelink/pkg/log"
	"github.com/autopeer-io/voicelink/pkg/options"
)

type BridgeOptions struct {
	HttpOptions     *options.HttpOptions     `json:"http" mapstructure:"http"`
	MqttOptions     *options.MqttOptions     `json:"mqtt" mapstructure:"mqtt"`
	StoreOptions    *options.StoreOptions    `json:"store" mapstructure:"store"`
	PostgresOptions *options.PostgresOptions `json:"postgres" mapstructure:"postgres"`
	S3Options       *options.S3Options       `json:"s3" mapstructure:"s3"`
	SweeperOptions  *options.SweeperOptions  `json:"sweeper" mapstructure:"sweeper"`
	AlexaOptions    *options.AlexaOptions    `json:"alexa" mapstructure:"alexa"`
	GoogleOptions   *options.GoogleOptions   `json:"google" mapstructure:"google"`
	Log             *log.Options             `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*BridgeOptions)(nil)

func NewBridgeOptions() *BridgeOptions {
	o := &BridgeOptions{
		HttpOptions:     options.NewHttpOptions(),
		MqttOptions:     options.NewMqttOptions(),
		StoreOptions:    options.NewStoreOptions(),
		PostgresOptions: options.NewPostgresOptions(),
		S3Options:       options.NewS3Options(),
		SweeperOptions:  options.NewSweeperOptions(),
		AlexaOptions:    options.NewAlexaOptions(),
		GoogleOptions:   options.NewGoogleOptions(),
		Log:             log.NewOptions(),
	}

	return o
}

func (o *BridgeOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.StoreOptions.AddFlags(fss.FlagSet("store"))
	o.PostgresOptions.AddFlags(fss.FlagSet("postgres"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.SweeperOptions.AddFlags(fss.FlagSet("sweeper"))
	o.AlexaOptions.AddFlags(fss.FlagSet("alexa"))
	o.GoogleOptions.AddFlags(fss.FlagSet("google"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *BridgeOptions) Complete() error {
	return nil
}

// Validate checks every option group. Backend options are only checked when
// the backend is selected.
func (o *BridgeOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.StoreOptions.Validate()...)
	if o.StoreOptions.Shadows == options.StorePostgres || o.StoreOptions.Accounts == options.StorePostgres {
		errs = append(errs, o.PostgresOptions.Validate()...)
	}
	if o.StoreOptions.Shadows == options.StoreS3 {
		errs = append(errs, o.S3Options.Validate()...)
	}
	errs = append(errs, o.SweeperOptions.Validate()...)
	if wait := o.HttpOptions.WaitTimeout(); wait <= o.SweeperOptions.Deadline {
		errs = append(errs, fmt.Errorf("--http.timeout (command wait %s) must exceed --sweeper.deadline (%s)", wait, o.SweeperOptions.Deadline))
	}
	errs = append(errs, o.AlexaOptions.Validate()...)
	errs = append(errs, o.GoogleOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *BridgeOptions) Config() (*bridge.Config, error) {
	return &bridge.Config{
		HttpOptions:     o.HttpOptions,
		MqttOptions:     o.MqttOptions,
		StoreOptions:    o.StoreOptions,
		PostgresOptions: o.PostgresOptions,
		S3Options:       o.S3Options,
		SweeperOptions:  o.SweeperOptions,
		AlexaOptions:    o.AlexaOptions,
		GoogleOptions:   o.GoogleOptions,
	}, nil
}
