// Package report assembles the permanent record of a run: the environment it
// ran in, the implementations it exercised, every case with its per-variant
// results and consensus outcome, and the aggregate tallies. The record
// serializes to indented JSON for archiving and to NDJSON for streaming
// consumers.
package report

import (
	"os"
	"runtime"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/google/uuid"

	"github.com/swhidcheck/swhidcheck/internal/adapter"
	"github.com/swhidcheck/swhidcheck/internal/capability"
	"github.com/swhidcheck/swhidcheck/internal/consensus"
	"github.com/swhidcheck/swhidcheck/internal/model"
)

// SchemaVersion identifies the record layout. Consumers reject majors they
// do not know.
const SchemaVersion = "1.0.0"

// Process exit codes. Engine errors (exit 2) are decided by the command
// layer; a finished record only distinguishes clean runs from divergence.
const (
	ExitOK          = 0
	ExitDivergence  = 1
	ExitEngineError = 2
)

// Record is the top-level run document.
type Record struct {
	SchemaVersion   string                 `json:"schema_version"`
	Run             RunInfo                `json:"run"`
	Implementations []ImplementationRecord `json:"implementations"`
	Tests           []CaseRecord           `json:"tests"`
	Aggregates      Aggregates             `json:"aggregates"`
}

// RunInfo names one run and the checkout it ran from.
type RunInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Branch    string    `json:"branch"`
	Commit    string    `json:"commit"`
	Runner    Runner    `json:"runner"`
}

// Runner describes the machine the run executed on.
type Runner struct {
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	Host      string `json:"host,omitempty"`
	GoVersion string `json:"go_version"`
}

// ImplementationRecord captures one implementation as seen by this run,
// including ones that failed their probe (Available false, results absent).
type ImplementationRecord struct {
	adapter.Info
	Available    bool                  `json:"available"`
	Capabilities capability.Descriptor `json:"capabilities"`
	Toolchain    map[string]string     `json:"toolchain,omitempty"`
}

// Expected-value provenance: golden values pinned in the suite versus values
// the run itself established.
const (
	SourceConfig    = "config"
	SourceConsensus = "consensus"
)

// Expected is the answer a case was checked against and where it came from.
type Expected struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

// CaseRecord is one (payload, variant) unit with every implementation's
// result and the consensus verdict. Results live here; the outcome carries
// only the verdict so the document states each result once.
type CaseRecord struct {
	ID         string         `json:"id"`
	Category   string         `json:"category"`
	PayloadRef string         `json:"payload_ref,omitempty"`
	Variant    string         `json:"variant"`
	Expected   *Expected      `json:"expected,omitempty"`
	Results    []model.Result `json:"results"`
	Outcome    OutcomeRecord  `json:"outcome"`
}

// OutcomeRecord is the serialized verdict of consensus.Compare.
type OutcomeRecord struct {
	Status    consensus.CaseStatus `json:"status"`
	Consensus string               `json:"consensus,omitempty"`
	Groups    []consensus.Group    `json:"groups,omitempty"`
}

// Tally counts one implementation's results across the run.
type Tally struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Errored int `json:"errored"`
}

// Aggregates folds the run into per-implementation tallies and per-status
// case counts.
type Aggregates struct {
	ByImplementation map[string]Tally             `json:"by_implementation"`
	Cases            map[consensus.CaseStatus]int `json:"cases"`
}

// New assembles a complete record and computes its aggregates.
func New(run RunInfo, impls []ImplementationRecord, tests []CaseRecord) *Record {
	return &Record{
		SchemaVersion:   SchemaVersion,
		Run:             run,
		Implementations: impls,
		Tests:           tests,
		Aggregates:      BuildAggregates(tests),
	}
}

// NewRunInfo stamps a fresh run: timestamp-prefixed id so report files sort
// chronologically, plus whatever the environment reveals about the checkout.
func NewRunInfo() RunInfo {
	now := time.Now().UTC().Truncate(time.Second)
	branch, commit := checkout()
	host, _ := os.Hostname()
	return RunInfo{
		ID:        now.Format("2006-01-02T15-04-05Z") + "-" + uuid.NewString()[:8],
		CreatedAt: now,
		Branch:    branch,
		Commit:    commit,
		Runner: Runner{
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			Host:      host,
			GoVersion: runtime.Version(),
		},
	}
}

// checkout reports the branch and commit of the working directory's
// repository, "unknown" for both when there is none.
func checkout() (branch, commit string) {
	branch, commit = "unknown", "unknown"
	repo, err := git.PlainOpenWithOptions(".", &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return branch, commit
	}
	head, err := repo.Head()
	if err != nil {
		return branch, commit
	}
	commit = head.Hash().String()
	if head.Name().IsBranch() {
		branch = head.Name().Short()
	}
	return branch, commit
}

// NewCaseRecord lifts a consensus outcome into the record, splitting the
// blamed results from the verdict.
func NewCaseRecord(id, category, payloadRef, variant string, expected *Expected, outcome consensus.Outcome) CaseRecord {
	return CaseRecord{
		ID:         id,
		Category:   category,
		PayloadRef: payloadRef,
		Variant:    variant,
		Expected:   expected,
		Results:    outcome.Results,
		Outcome: OutcomeRecord{
			Status:    outcome.Status,
			Consensus: outcome.Consensus,
			Groups:    outcome.Groups,
		},
	}
}

// BuildAggregates tallies results per implementation and cases per outcome
// status.
func BuildAggregates(tests []CaseRecord) Aggregates {
	agg := Aggregates{
		ByImplementation: make(map[string]Tally),
		Cases:            make(map[consensus.CaseStatus]int),
	}
	for _, tc := range tests {
		agg.Cases[tc.Outcome.Status]++
		for _, r := range tc.Results {
			t := agg.ByImplementation[r.Implementation]
			switch r.Status {
			case model.StatusPass:
				t.Passed++
			case model.StatusFail:
				t.Failed++
			case model.StatusSkipped:
				t.Skipped++
			case model.StatusError:
				t.Errored++
			}
			agg.ByImplementation[r.Implementation] = t
		}
	}
	return agg
}

// ExitCode maps a finished record onto the exit policy: divergence anywhere
// fails the run, skips and clean agreement do not.
func ExitCode(rec *Record) int {
	for _, tc := range rec.Tests {
		switch tc.Outcome.Status {
		case consensus.StatusFail, consensus.StatusDisagreement:
			return ExitDivergence
		}
	}
	return ExitOK
}
