package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/autopeer-io/voicelink/pkg/log"
)

const configFlagName = "config"

var cfgFile string

// addConfigFlag registers --config and prepares viper for the given command.
// Environment variables use the upper-cased command name as prefix,
// with dots and dashes replaced by underscores.
func addConfigFlag(basename string, fs *pflag.FlagSet) {
	fs.StringVarP(&cfgFile, configFlagName, "c", cfgFile, "Read configuration from the specified YAML file.")

	prefix := strings.ToUpper(strings.ReplaceAll(basename, "-", "_"))
	viper.SetEnvPrefix(prefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the config file, if any. When watch is not nil it is called
// after every successful reload triggered by a file change.
func loadConfig(watch func()) error {
	if cfgFile == "" {
		return nil
	}

	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file %q: %w", cfgFile, err)
	}

	if watch != nil {
		viper.OnConfigChange(func(e fsnotify.Event) {
			if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				return
			}
			log.Info("Configuration file changed", "file", e.Name)
			watch()
		})
		viper.WatchConfig()
	}

	return nil
}

// configFileUsed reports the config file path, for diagnostics.
func configFileUsed() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	if _, err := os.Stat(cfgFile); err == nil {
		return cfgFile
	}
	return ""
}
