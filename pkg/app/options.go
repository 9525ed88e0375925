package app

import (
	cliflag "k8s.io/component-base/cli/flag"
)

// NamedFlagSetOptions abstracts the option groups of a command.
type NamedFlagSetOptions interface {
	// Flags returns the flag sets, grouped by section for help output.
	Flags() cliflag.NamedFlagSets

	// Complete fills in fields derived from others after flags and config are applied.
	Complete() error

	// Validate reports every invalid option, aggregated.
	Validate() error
}
