package main

import (
	"github.com/spf13/cobra"
)

var configPathFlag string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "sentinel",
		Short: "Sentinel Cycle Engine: one finite-state turn of a code-modification agent",
	}
	root.PersistentFlags().StringVar(&configPathFlag, "config", "", "path to a sentinel config YAML file")

	root.AddCommand(newRunCommand())
	root.AddCommand(newServeCommand())
	root.AddCommand(newConfigCommand())
	return root
}
