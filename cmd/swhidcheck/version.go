package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/swhidcheck/swhidcheck/internal/report"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "swhidcheck %s\ncommit: %s\nbuilt: %s\nschema: %s\ngo: %s\n",
				version, commit, date, report.SchemaVersion, runtime.Version())
			return nil
		},
	}

	return cmd
}
