package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swhidcheck/swhidcheck/internal/engine"
)

func newPayloadsCmd(root *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "payloads",
		Short: "List the test cases the suite expands to",
		Long: `Payloads stages every configured payload and prints the resulting case
list, one line per (case, variant) unit, including the per-ref cases a git
payload expands into.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.close()

			cases, err := engine.ExpandCases(context.Background(), a.cfg, a.baseDir, a.staging)
			if err != nil {
				return err
			}

			type caseLine struct {
				ID       string `json:"id"`
				Category string `json:"category"`
				Type     string `json:"type"`
				Variant  string `json:"variant"`
				Ref      string `json:"ref,omitempty"`
				Golden   string `json:"golden,omitempty"`
				Negative string `json:"negative,omitempty"`
			}

			lines := make([]caseLine, 0, len(cases))
			for _, c := range cases {
				lines = append(lines, caseLine{
					ID:       c.ID,
					Category: c.Category,
					Type:     string(c.Type),
					Variant:  c.Variant.String(),
					Ref:      c.Ref,
					Golden:   c.Golden,
					Negative: string(c.Negative),
				})
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(lines)
			}

			for _, l := range lines {
				mode := "consensus"
				switch {
				case l.Golden != "":
					mode = "golden"
				case l.Negative != "":
					mode = "negative " + l.Negative
				}
				fmt.Fprintf(out, "%-40s %-10s %-4s %-18s %s\n", l.ID, l.Category, l.Type, l.Variant, mode)
			}
			fmt.Fprintf(out, "%d cases\n", len(lines))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}
