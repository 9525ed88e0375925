package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*AlexaOptions)(nil)

// AlexaOptions configures proactive ChangeReports to the Alexa event gateway.
type AlexaOptions struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	EventURL     string        `json:"event-url" mapstructure:"event-url"`
	TokenURL     string        `json:"token-url" mapstructure:"token-url"`
	ClientID     string        `json:"client-id" mapstructure:"client-id"`
	ClientSecret string        `json:"client-secret" mapstructure:"client-secret"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
}

func NewAlexaOptions() *AlexaOptions {
	return &AlexaOptions{
		Enabled:  false,
		EventURL: "https://api.amazonalexa.com/v3/events",
		TokenURL: "https://api.amazon.com/auth/o2/token",
		Timeout:  10 * time.Second,
	}
}

func (o *AlexaOptions) Validate() []error {
	if !o.Enabled {
		return nil
	}

	errs := []error{}

	if o.EventURL == "" || o.TokenURL == "" {
		errs = append(errs, errors.New("--alexa.event-url and --alexa.token-url are required when alexa is enabled"))
	}
	if o.ClientID == "" || o.ClientSecret == "" {
		errs = append(errs, errors.New("--alexa.client-id and --alexa.client-secret are required when alexa is enabled"))
	}

	return errs
}

func (o *AlexaOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, "alexa.enabled", o.Enabled, "Send state changes to Alexa.")
	fs.StringVar(&o.EventURL, "alexa.event-url", o.EventURL, "Alexa event gateway URL.")
	fs.StringVar(&o.TokenURL, "alexa.token-url", o.TokenURL, "Login with Amazon token endpoint.")
	fs.StringVar(&o.ClientID, "alexa.client-id", o.ClientID, "Skill messaging client ID.")
	fs.StringVar(&o.ClientSecret, "alexa.client-secret", o.ClientSecret, "Skill messaging client secret.")
	fs.DurationVar(&o.Timeout, "alexa.timeout", o.Timeout, "Timeout for requests to Alexa.")
}
