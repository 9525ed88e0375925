package app

import (
	"fmt"
	"sort"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// printConfigCommand prints the effective configuration after flags,
// environment and the config file have been merged.
func (a *App) printConfigCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "print-config",
		Short: "Print the effective configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.applyConfig(cmd); err != nil {
				return err
			}

			switch output {
			case "table":
				fmt.Fprintln(cmd.OutOrStdout(), settingsTable(viper.AllSettings()))
			case "yaml":
				out, err := yaml.Marshal(a.options)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), string(out))
			default:
				return fmt.Errorf("unsupported output %q, use table or yaml", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table or yaml.")

	return cmd
}

// settingsTable flattens nested settings into dotted keys, sorted.
func settingsTable(settings map[string]any) *uitable.Table {
	flat := map[string]any{}
	flatten("", settings, flat)

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := uitable.New()
	table.MaxColWidth = 80
	table.AddRow("KEY", "VALUE")
	for _, k := range keys {
		table.AddRow(k, flat[k])
	}
	return table
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}
