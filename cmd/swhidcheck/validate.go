package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swhidcheck/swhidcheck/internal/config"
)

func newValidateCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate the suite configuration without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Parse(root.configPath)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d implementations, %d payloads)\n",
				root.configPath, len(cfg.Implementations), cfg.Payloads.Count())
			return nil
		},
	}

	return cmd
}
