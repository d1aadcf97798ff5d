package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	verbose    bool
	logFormat  string
	noColor    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "swhidcheck",
		Short:         "swhidcheck runs SWHID implementations against each other and against golden values",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "swhidcheck.yaml", "Suite configuration file")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "auto", "Log output format: auto, json, or console")
	cmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newImplsCmd(flags))
	cmd.AddCommand(newPayloadsCmd(flags))
	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newGoldenCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
