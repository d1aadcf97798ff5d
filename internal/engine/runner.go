// Package engine schedules a suite: it expands configured payloads into
// cases, fans every (case, implementation) unit out under a bounded
// concurrency limit, joins per case, and hands the joined results to the
// consensus layer. Implementation failures never cancel sibling units; only
// caller cancellation stops a run.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/swhidcheck/swhidcheck/internal/adapter"
	"github.com/swhidcheck/swhidcheck/internal/capability"
	"github.com/swhidcheck/swhidcheck/internal/config"
	"github.com/swhidcheck/swhidcheck/internal/consensus"
	"github.com/swhidcheck/swhidcheck/internal/logger"
	"github.com/swhidcheck/swhidcheck/internal/model"
	"github.com/swhidcheck/swhidcheck/internal/report"
	"github.com/swhidcheck/swhidcheck/internal/sandbox"
	"github.com/swhidcheck/swhidcheck/internal/swhid"
	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

// Options configures one run.
type Options struct {
	Config   *config.Config
	Registry *adapter.Registry
	Log      *logger.Logger

	// BaseDir anchors relative payload paths; StagingRoot receives extracted
	// archives and built fixtures.
	BaseDir     string
	StagingRoot string

	// Filter keeps only cases whose id contains the substring. Implementations
	// restricts the run to a subset of registered ids; empty means all.
	Filter          string
	Implementations []string
}

// Runner executes one suite against one registry.
type Runner struct {
	opts Options
	log  *logger.Logger
}

// New builds a runner. The registry and config are used as given; the runner
// mutates neither.
func New(opts Options) *Runner {
	return &Runner{opts: opts, log: opts.Log}
}

// Run executes the suite and assembles the canonical record. An error return
// means the engine itself could not run (bad payload, cancellation); every
// implementation-side failure lands inside the record instead.
func (r *Runner) Run(ctx context.Context) (*report.Record, error) {
	cfg := r.opts.Config

	cases, err := ExpandCases(ctx, cfg, r.opts.BaseDir, r.opts.StagingRoot)
	if err != nil {
		return nil, err
	}
	cases = r.filterCases(cases)

	active, implRecords, err := r.selectImplementations(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, errors.NewExecutionError("", "",
			errors.NewValidationError("implementations", "no implementation is available to run", nil))
	}

	limits := sandbox.Limits{
		WallClock:   cfg.Settings.Timeout(),
		CPUTime:     cfg.Settings.CPULimit(),
		MemoryBytes: cfg.Settings.MemoryBytes(),
	}

	r.log.WithFields(map[string]any{
		"cases":           len(cases),
		"implementations": len(active),
		"parallel":        cfg.Settings.Parallel,
	}).Info("starting conformance run")

	// One result slot per (case, implementation); each unit writes only its
	// own slot, so the join needs no lock beyond the group wait.
	unitResults := make([][]model.Result, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(cfg.Settings.Parallel))

	for ci := range cases {
		unitResults[ci] = make([]model.Result, len(active))
		for ii := range active {
			ci, ii := ci, ii
			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)
				unitResults[ci][ii] = r.invoke(gctx, cases[ci], active[ii], limits)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tests := make([]report.CaseRecord, 0, len(cases))
	for ci, c := range cases {
		tests = append(tests, r.judge(c, unitResults[ci]))
	}

	return report.New(report.NewRunInfo(), implRecords, tests), nil
}

// judge runs consensus over one joined case and lifts the verdict into the
// record.
func (r *Runner) judge(c Case, results []model.Result) report.CaseRecord {
	outcome := consensus.Compare(consensus.Input{
		Results:  results,
		Golden:   c.Golden,
		Negative: c.Negative,
	})

	var expected *report.Expected
	switch {
	case c.Golden != "":
		expected = &report.Expected{Value: c.Golden, Source: report.SourceConfig}
	case outcome.Consensus != "":
		expected = &report.Expected{Value: outcome.Consensus, Source: report.SourceConsensus}
	}

	r.log.WithFields(map[string]any{
		"case":    c.ID,
		"variant": c.Variant.String(),
		"status":  string(outcome.Status),
	}).Info("case judged")

	return report.NewCaseRecord(c.ID, c.Category, c.PayloadRef, c.Variant.String(), expected, outcome)
}

// invoke produces the single Result of one (case, implementation) unit. Every
// failure mode is captured in the result; nothing escapes as an engine error.
func (r *Runner) invoke(ctx context.Context, c Case, impl adapter.Implementation, limits sandbox.Limits) model.Result {
	id := impl.Info().ID
	res := model.Result{Implementation: id, Variant: c.Variant.String()}

	if skip := capability.Evaluate(impl.Capabilities(), requirements(c)); skip != nil {
		r.log.WithFields(map[string]any{
			"case":           c.ID,
			"implementation": id,
			"reason":         skip.Reason,
		}).Debug("case skipped by capability gate")
		res.Status = model.StatusSkipped
		res.SkipReason = skip.Reason
		return res
	}

	req := adapter.Request{
		Type:        c.Type,
		Variant:     c.Variant,
		PayloadPath: c.Payload.Path,
		Ref:         c.Ref,
		Qualifiers:  append([]string(nil), c.Qualifiers...),
		Limits:      limits,
	}

	samples := make([]model.Sample, 0, r.samples())
	var raw string
	for i := 0; i < r.samples(); i++ {
		resp, err := impl.Compute(ctx, req)
		if resp.Sample != (model.Sample{}) {
			samples = append(samples, resp.Sample)
		}
		if err != nil {
			res.Status = model.StatusError
			res.Error = model.Describe(err)
			res.Metrics = model.NewMetrics(samples)
			return res
		}
		if i == 0 {
			raw = resp.Identifier
			continue
		}
		if resp.Identifier != raw {
			res.Status = model.StatusError
			res.Error = &model.ErrorInfo{
				Kind:    model.KindComputeError,
				Subtype: "nondeterministic",
				Message: fmt.Sprintf("sample %d differs from sample 1", i+1),
				Context: map[string]any{"first": raw, "other": resp.Identifier},
			}
			res.Metrics = model.NewMetrics(samples)
			return res
		}
	}
	res.Metrics = model.NewMetrics(samples)

	parsed, err := swhid.Parse(raw)
	if err != nil {
		res.Status = model.StatusError
		res.Raw = raw
		res.Error = model.Describe(err)
		return res
	}
	if !parsed.Canonical() {
		res.Status = model.StatusError
		res.Raw = raw
		res.Identifier = parsed.String()
		res.Error = model.Describe(errors.NewNormalizeError("canonical_form",
			fmt.Sprintf("%q is valid but not in canonical form", raw), nil))
		return res
	}
	if parsed.Variant != c.Variant {
		res.Status = model.StatusError
		res.Raw = raw
		res.Error = model.Describe(errors.NewNormalizeError("variant",
			fmt.Sprintf("requested %s, got %s", c.Variant, parsed.Variant), nil))
		return res
	}

	res.Status = model.StatusPass
	res.Identifier = parsed.String()
	return res
}

func (r *Runner) samples() int {
	if n := r.opts.Config.Settings.Samples; n > 1 {
		return n
	}
	return 1
}

// requirements derives the capability demand of one case.
func requirements(c Case) capability.Requirements {
	keys := make([]string, 0, len(c.Qualifiers))
	for _, q := range c.Qualifiers {
		key, _, _ := strings.Cut(q, "=")
		keys = append(keys, key)
	}
	return capability.Requirements{
		Type:            c.Type,
		Variant:         c.Variant,
		Qualifiers:      keys,
		PayloadBytes:    c.Payload.Size,
		Unicode:         c.Payload.Unicode,
		PercentEncoding: c.Payload.PercentEncoding,
	}
}

func (r *Runner) filterCases(cases []Case) []Case {
	if r.opts.Filter == "" {
		return cases
	}
	out := cases[:0]
	for _, c := range cases {
		if strings.Contains(c.ID, r.opts.Filter) {
			out = append(out, c)
		}
	}
	return out
}

// selectImplementations probes the registry and splits it into the
// implementations that will execute and the records the report keeps for all
// of them. An unavailable implementation stays in the record, flagged, and is
// never dispatched; availability problems are not wrong answers.
func (r *Runner) selectImplementations(ctx context.Context) ([]adapter.Implementation, []report.ImplementationRecord, error) {
	wanted := make(map[string]bool, len(r.opts.Implementations))
	for _, id := range r.opts.Implementations {
		wanted[id] = true
	}

	var active []adapter.Implementation
	var records []report.ImplementationRecord
	for _, impl := range r.opts.Registry.List() {
		info := impl.Info()
		if len(wanted) > 0 && !wanted[info.ID] {
			continue
		}

		available := true
		if err := impl.Probe(ctx); err != nil {
			available = false
			r.log.WithFields(map[string]any{"implementation": info.ID}).
				Warn("implementation unavailable: " + err.Error())
		}

		rec := report.ImplementationRecord{
			Info:         info,
			Available:    available,
			Capabilities: impl.Capabilities(),
		}
		if info.Language == "go" {
			rec.Toolchain = map[string]string{"go": runtime.Version()}
		}
		records = append(records, rec)

		if available {
			active = append(active, impl)
		}
	}

	for id := range wanted {
		found := false
		for _, rec := range records {
			if rec.ID == id {
				found = true
				break
			}
		}
		if !found {
			return nil, nil, errors.NewRegistryError(id,
				errors.NewValidationError("id", "not registered", nil))
		}
	}

	return active, records, nil
}
