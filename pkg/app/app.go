package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/cli/globalflag"

	"github.com/autopeer-io/voicelink/pkg/log"
)

// RunFunc is the main entry of an application, called once options are
// loaded and validated.
type RunFunc func() error

// Option customizes an App.
type Option func(*App)

// App is the skeleton of a command line application.
type App struct {
	basename    string
	name        string
	description string
	options     NamedFlagSetOptions
	runFunc     RunFunc
	onReload    func()
	noConfig    bool
	args        cobra.PositionalArgs
	cmd         *cobra.Command
}

// WithOptions sets the option groups of the application.
func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) { a.options = opts }
}

// WithRunFunc sets the function executed after option validation.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

// WithDescription sets the long description shown by --help.
func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithDefaultValidArgs rejects any positional argument.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.args = func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if len(arg) > 0 {
					return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
				}
			}
			return nil
		}
	}
}

// WithNoConfig disables the --config flag.
func WithNoConfig() Option {
	return func(a *App) { a.noConfig = true }
}

// WithConfigReload enables watching the config file. fn runs after each change.
func WithConfigReload(fn func()) Option {
	return func(a *App) { a.onReload = fn }
}

// NewApp creates a new application.
func NewApp(basename string, name string, opts ...Option) *App {
	a := &App{
		basename: basename,
		name:     name,
	}

	for _, o := range opts {
		o(a)
	}

	a.buildCommand()

	return a
}

// Command returns the root cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run executes the application and exits the process on failure.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.basename,
		Short:         a.name,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          a.args,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.PersistentFlags().SortFlags = true

	if a.runFunc != nil {
		cmd.RunE = a.runCommand
	}

	var fss cliflag.NamedFlagSets
	if a.options != nil {
		fss = a.options.Flags()
	}
	if !a.noConfig {
		addConfigFlag(a.basename, fss.FlagSet("global"))
	}
	globalflag.AddGlobalFlags(fss.FlagSet("global"), cmd.Name())

	// Persistent so that print-config sees the same flags.
	fs := cmd.PersistentFlags()
	for _, f := range fss.FlagSets {
		fs.AddFlagSet(f)
	}

	cliflag.SetUsageAndHelpFunc(cmd, fss, 80)

	if a.options != nil {
		cmd.AddCommand(a.printConfigCommand())
	}

	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, args []string) error {
	if err := a.applyConfig(cmd); err != nil {
		return err
	}

	return a.runFunc()
}

// applyConfig merges flags, environment and config file into the options,
// then completes and validates them.
func (a *App) applyConfig(cmd *cobra.Command) error {
	if a.options == nil {
		return nil
	}

	if !a.noConfig {
		if err := loadConfig(a.onReload); err != nil {
			return err
		}
	}

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := viper.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := a.options.Complete(); err != nil {
		return err
	}
	if err := a.options.Validate(); err != nil {
		return err
	}

	if file := configFileUsed(); file != "" {
		log.Info("Using configuration file", "file", file)
	}
	return nil
}
