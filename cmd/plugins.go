package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/FlexMeasures/flexmeasures-sub003/app/plugins"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List the built-in schedulers, forecasters, stores and sinks",
	RunE:  runPlugins,
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
}

func runPlugins(cmd *cobra.Command, args []string) error {
	builtins := plugins.Builtins()
	kinds := make([]string, 0, len(builtins))
	for kind := range builtins {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", kind); err != nil {
			return err
		}
		for _, name := range builtins[kind] {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name); err != nil {
				return err
			}
		}
	}
	return nil
}
