package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newImplsCmd(root *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "impls",
		Short: "List configured implementations and probe their availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.close()

			type implLine struct {
				ID         string   `json:"id"`
				Version    string   `json:"version,omitempty"`
				Language   string   `json:"language,omitempty"`
				Available  bool     `json:"available"`
				Types      []string `json:"types"`
				Variants   []string `json:"variants"`
				Qualifiers []string `json:"qualifiers,omitempty"`
			}

			var lines []implLine
			for _, impl := range a.registry.List() {
				info := impl.Info()
				caps := impl.Capabilities()
				types := make([]string, 0, len(caps.Types))
				for _, typ := range caps.Types {
					types = append(types, string(typ))
				}
				lines = append(lines, implLine{
					ID:         info.ID,
					Version:    info.Version,
					Language:   info.Language,
					Available:  impl.Probe(context.Background()) == nil,
					Types:      types,
					Variants:   caps.VariantTags,
					Qualifiers: caps.Qualifiers,
				})
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(lines)
			}

			for _, l := range lines {
				marker := "✔"
				if !l.Available {
					marker = "✖"
				}
				fmt.Fprintf(out, "%s %s", marker, l.ID)
				if l.Version != "" {
					fmt.Fprintf(out, " (%s)", l.Version)
				}
				fmt.Fprintf(out, "\n    types: %s\n    variants: %s\n",
					strings.Join(l.Types, " "), strings.Join(l.Variants, " "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}
