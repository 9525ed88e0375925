package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*GoogleOptions)(nil)

// GoogleOptions configures reportState calls to Google HomeGraph.
type GoogleOptions struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	APIURL  string `json:"api-url" mapstructure:"api-url"`
	// CredentialsFile is a service account key in JSON form.
	CredentialsFile string        `json:"credentials-file" mapstructure:"credentials-file"`
	Timeout         time.Duration `json:"timeout" mapstructure:"timeout"`
}

func NewGoogleOptions() *GoogleOptions {
	return &GoogleOptions{
		Enabled: false,
		APIURL:  "https://homegraph.googleapis.com/v1/devices:reportStateAndNotification",
		Timeout: 10 * time.Second,
	}
}

func (o *GoogleOptions) Validate() []error {
	if !o.Enabled {
		return nil
	}

	errs := []error{}

	if o.APIURL == "" {
		errs = append(errs, errors.New("--google.api-url is required when google is enabled"))
	}
	if o.CredentialsFile == "" {
		errs = append(errs, errors.New("--google.credentials-file is required when google is enabled"))
	}

	return errs
}

func (o *GoogleOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, "google.enabled", o.Enabled, "Send state changes to Google HomeGraph.")
	fs.StringVar(&o.APIURL, "google.api-url", o.APIURL, "HomeGraph reportStateAndNotification URL.")
	fs.StringVar(&o.CredentialsFile, "google.credentials-file", o.CredentialsFile, "Path to the service account key JSON.")
	fs.DurationVar(&o.Timeout, "google.timeout", o.Timeout, "Timeout for requests to HomeGraph.")
}
