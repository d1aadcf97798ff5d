package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/swhidcheck/swhidcheck/internal/engine"
	"github.com/swhidcheck/swhidcheck/internal/report"
)

type runOptions struct {
	output   string
	format   string
	filter   string
	impls    []string
	samples  int
	parallel int
	timeout  int
}

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the suite and report per-case verdicts",
		Long: `Run dispatches every configured test case to every enabled implementation,
compares the answers against golden values or each other, prints a summary,
and writes the canonical result record. Exit code 0 means every case agreed
or was conformant, 1 means at least one case failed or diverged, 2 means the
engine itself could not complete the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the result record to this file (overrides settings.output)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Record format: json or ndjson (overrides settings.format)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only run cases whose id contains this substring")
	cmd.Flags().StringSliceVar(&opts.impls, "impl", nil, "Only run these implementation ids (repeatable)")
	cmd.Flags().IntVar(&opts.samples, "samples", 0, "Samples per invocation (overrides settings.samples)")
	cmd.Flags().IntVar(&opts.parallel, "parallel", 0, "Concurrent invocations (overrides settings.parallel)")
	cmd.Flags().IntVar(&opts.timeout, "timeout", 0, "Per-invocation wall-clock budget in seconds (overrides settings.timeout_s)")

	return cmd
}

func runRun(root *rootFlags, opts runOptions) error {
	a, err := newApp(root)
	if err != nil {
		return err
	}
	defer a.close()

	if opts.samples > 0 {
		a.cfg.Settings.Samples = opts.samples
	}
	if opts.parallel > 0 {
		a.cfg.Settings.Parallel = opts.parallel
	}
	if opts.timeout > 0 {
		a.cfg.Settings.TimeoutS = opts.timeout
	}
	if opts.output != "" {
		a.cfg.Settings.Output = opts.output
	}
	if opts.format != "" {
		a.cfg.Settings.Format = opts.format
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := engine.New(engine.Options{
		Config:          a.cfg,
		Registry:        a.registry,
		Log:             a.log,
		BaseDir:         a.baseDir,
		StagingRoot:     a.staging,
		Filter:          opts.filter,
		Implementations: opts.impls,
	})
	rec, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	report.WriteSummary(os.Stdout, rec, report.ColorEnabled(os.Stdout) && !root.noColor)

	if a.cfg.Settings.Output != "" {
		if err := report.WriteFile(a.cfg.Settings.Output, a.cfg.Settings.Format, rec); err != nil {
			return err
		}
		a.log.WithFields(map[string]any{"path": a.cfg.Settings.Output}).Info("result record written")
	} else if err := report.WriteJSON(os.Stdout, rec); err != nil {
		return err
	}

	if code := report.ExitCode(rec); code != report.ExitOK {
		a.close()
		os.Exit(code)
	}
	return nil
}
