package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreS3       = "s3"
)

var _ IOptions = (*StoreOptions)(nil)

// StoreOptions selects the backends for device shadows and linked accounts.
type StoreOptions struct {
	// Shadows is one of memory, postgres or s3.
	Shadows string `json:"shadows" mapstructure:"shadows"`
	// Accounts is one of memory or postgres.
	Accounts string `json:"accounts" mapstructure:"accounts"`
	// SeedFile optionally preloads the memory stores from a YAML document.
	SeedFile string `json:"seed-file" mapstructure:"seed-file"`
}

func NewStoreOptions() *StoreOptions {
	return &StoreOptions{
		Shadows:  StoreMemory,
		Accounts: StoreMemory,
	}
}

func (o *StoreOptions) Validate() []error {
	errs := []error{}

	switch o.Shadows {
	case StoreMemory, StorePostgres, StoreS3:
	default:
		errs = append(errs, fmt.Errorf("--store.shadows: unsupported backend %q", o.Shadows))
	}
	switch o.Accounts {
	case StoreMemory, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("--store.accounts: unsupported backend %q", o.Accounts))
	}

	return errs
}

func (o *StoreOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Shadows, "store.shadows", o.Shadows, "Shadow store backend: memory, postgres or s3.")
	fs.StringVar(&o.Accounts, "store.accounts", o.Accounts, "Linked account store backend: memory or postgres.")
	fs.StringVar(&o.SeedFile, "store.seed-file", o.SeedFile, "YAML file used to seed the memory stores.")
}
