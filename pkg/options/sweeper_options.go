package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SweeperOptions)(nil)

// SweeperOptions configures the pending command timeout sweep.
type SweeperOptions struct {
	Interval time.Duration `json:"interval" mapstructure:"interval"`
	Deadline time.Duration `json:"deadline" mapstructure:"deadline"`
}

func NewSweeperOptions() *SweeperOptions {
	return &SweeperOptions{
		Interval: 500 * time.Millisecond,
		Deadline: 2 * time.Second,
	}
}

func (o *SweeperOptions) Validate() []error {
	errs := []error{}

	if o.Interval <= 0 {
		errs = append(errs, errors.New("--sweeper.interval must be positive"))
	}
	if o.Deadline < o.Interval {
		errs = append(errs, errors.New("--sweeper.deadline must not be shorter than --sweeper.interval"))
	}

	return errs
}

func (o *SweeperOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.Interval, "sweeper.interval", o.Interval, "How often pending commands are checked for expiry.")
	fs.DurationVar(&o.Deadline, "sweeper.deadline", o.Deadline, "How long a command waits for its acknowledgement.")
}
