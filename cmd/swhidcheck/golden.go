package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/swhidcheck/swhidcheck/internal/config"
	"github.com/swhidcheck/swhidcheck/internal/consensus"
	"github.com/swhidcheck/swhidcheck/internal/engine"
	"github.com/swhidcheck/swhidcheck/internal/model"
	"github.com/swhidcheck/swhidcheck/internal/report"
)

func newGoldenCmd(root *rootFlags) *cobra.Command {
	var implID string
	var output string

	cmd := &cobra.Command{
		Use:   "golden",
		Short: "Recompute golden values with one designated implementation",
		Long: `Golden runs every case against a single trusted implementation and emits
the payloads section of the configuration with the computed identifiers
filled in as expected values. The suite file itself is never touched; write
the output where you want it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.close()

			runner := engine.New(engine.Options{
				Config:          a.cfg,
				Registry:        a.registry,
				Log:             a.log,
				BaseDir:         a.baseDir,
				StagingRoot:     a.staging,
				Implementations: []string{implID},
			})
			rec, err := runner.Run(context.Background())
			if err != nil {
				return err
			}

			computed, missing := goldenValues(rec, implID)
			payloads := fillGoldens(a.cfg.Payloads, computed)

			doc := struct {
				Payloads config.Payloads `yaml:"payloads"`
			}{Payloads: payloads}

			data, err := yaml.Marshal(&doc)
			if err != nil {
				return err
			}

			if output != "" {
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return err
				}
				a.log.WithFields(map[string]any{"path": output}).Info("golden payload section written")
			} else {
				fmt.Fprint(cmd.OutOrStdout(), string(data))
			}

			for _, id := range missing {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s produced no identifier for %s\n", implID, id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&implID, "impl", "reference", "Implementation that computes the golden values")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the payloads section to this file instead of stdout")

	return cmd
}

// goldenValues extracts the designated implementation's identifiers, keyed
// by case id and variant. Cases it could not answer are reported so stale
// expectations are not silently kept.
func goldenValues(rec *report.Record, implID string) (map[string]string, []string) {
	computed := make(map[string]string)
	var missing []string
	for _, tc := range rec.Tests {
		found := false
		for _, r := range tc.Results {
			if r.Implementation != implID {
				continue
			}
			// Consensus has no second opinion here, so any parsed answer
			// keeps its pass status.
			if r.Status == model.StatusPass && r.Identifier != "" {
				computed[tc.ID+"|"+tc.Variant] = r.Identifier
				found = true
			}
		}
		if !found && tc.Outcome.Status != consensus.StatusSkipped {
			missing = append(missing, tc.ID+" ("+tc.Variant+")")
		}
	}
	return computed, missing
}

// fillGoldens overlays computed identifiers onto a copy of the payload
// section. File payloads gain one expected entry per variant that answered;
// git payloads gain branch, tag, and snapshot values. Entries that produced
// nothing keep whatever the suite already pinned.
func fillGoldens(payloads config.Payloads, computed map[string]string) config.Payloads {
	fillFile := func(list []config.FilePayload) []config.FilePayload {
		out := append([]config.FilePayload(nil), list...)
		for i := range out {
			p := &out[i]
			expected := make(map[string]string, len(p.Expected))
			for k, v := range p.Expected {
				expected[k] = v
			}
			for _, tag := range variantTags(p.Variants, p.Expected) {
				if id, ok := computed[p.Name+"|"+tag]; ok {
					expected[tag] = id
				}
			}
			if len(expected) > 0 {
				p.Expected = expected
			}
		}
		return out
	}

	out := payloads
	out.Content = fillFile(payloads.Content)
	out.Directory = fillFile(payloads.Directory)
	out.Archive = fillFile(payloads.Archive)

	out.Git = append([]config.GitPayload(nil), payloads.Git...)
	for i := range out.Git {
		g := &out.Git[i]
		tag := "v1-sha1-hex"
		if len(g.Variants) > 0 {
			tag = g.Variants[0]
		}

		branches := make(map[string]string, len(g.Branches))
		for name, v := range g.Branches {
			if id, ok := computed[g.Name+"-branch-"+name+"|"+tag]; ok {
				v = id
			}
			branches[name] = v
		}
		if len(branches) > 0 {
			g.Branches = branches
		}

		tags := make(map[string]string, len(g.Tags))
		for name, v := range g.Tags {
			if id, ok := computed[g.Name+"-tag-"+name+"|"+tag]; ok {
				v = id
			}
			tags[name] = v
		}
		if len(tags) > 0 {
			g.Tags = tags
		}

		if g.Snapshot != nil {
			if id, ok := computed[g.Name+"-snapshot|"+tag]; ok {
				snap := id
				g.Snapshot = &snap
			}
		}
	}
	return out
}

// variantTags mirrors the engine's variant resolution for one file payload:
// the declared list plus any expectation keys, defaulting to v1 hex.
func variantTags(declared []string, expected map[string]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tag := range declared {
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	for tag := range expected {
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	if len(out) == 0 {
		out = append(out, "v1-sha1-hex")
	}
	return out
}
