// Package consensus decides what a set of per-implementation results means:
// conformance against a golden value when the suite has one, agreement
// analysis among the implementations when it does not, and expectation
// checking for negative cases. Only this layer may hand out MISMATCH_ERROR.
package consensus

import (
	"fmt"
	"sort"

	"github.com/swhidcheck/swhidcheck/internal/model"
	"github.com/swhidcheck/swhidcheck/internal/swhid"
	"github.com/swhidcheck/swhidcheck/pkg/diff"
)

// CaseStatus is the verdict for one (case, variant) unit.
type CaseStatus string

const (
	// StatusConformant means every attempted implementation matched the
	// documented expectation.
	StatusConformant CaseStatus = "conformant"
	// StatusAgreement means no golden value exists and every attempted
	// implementation produced the same identifier.
	StatusAgreement CaseStatus = "agreement"
	// StatusDisagreement means no golden value exists and the attempted
	// implementations diverged (or all errored).
	StatusDisagreement CaseStatus = "disagreement"
	// StatusFail means at least one implementation contradicted the
	// documented expectation.
	StatusFail CaseStatus = "fail"
	// StatusSkipped means no implementation attempted the unit.
	StatusSkipped CaseStatus = "skipped"
)

// Input is everything Compare needs for one unit. Golden carries the
// expected identifier when the suite documents one; Negative carries the
// expected error kind for cases that must be rejected.
type Input struct {
	Results  []model.Result
	Golden   string
	Negative model.ErrorKind
}

// Group is one set of implementations that produced structurally equal
// identifiers.
type Group struct {
	Identifier string   `json:"identifier"`
	Members    []string `json:"members"`
}

// Outcome is the finalized verdict. Results are copies of the input with
// consensus blame applied; Compare never mutates its input.
type Outcome struct {
	Status    CaseStatus     `json:"status"`
	Consensus string         `json:"consensus,omitempty"`
	Groups    []Group        `json:"groups,omitempty"`
	Results   []model.Result `json:"results"`
}

type group struct {
	id      *swhid.Identifier
	text    string
	indexes []int
	members []string
}

// Compare runs the comparison rules over one unit's results.
func Compare(in Input) Outcome {
	results := append([]model.Result(nil), in.Results...)

	if in.Negative != "" {
		return compareNegative(in.Negative, results)
	}

	attempted := 0
	for _, r := range results {
		if r.Status != model.StatusSkipped {
			attempted++
		}
	}
	if attempted == 0 {
		return Outcome{Status: StatusSkipped, Results: results}
	}

	groups := groupResults(results)

	if in.Golden != "" {
		return compareGolden(in.Golden, groups, results)
	}
	return compareAgreement(groups, results, attempted)
}

// groupResults partitions the successfully parsed identifiers into
// structural-equality groups, largest first, ties broken by identifier text.
func groupResults(results []model.Result) []group {
	var groups []group
	for i, r := range results {
		if r.Status != model.StatusPass || r.Identifier == "" {
			continue
		}
		id, err := swhid.Parse(r.Identifier)
		if err != nil {
			continue
		}
		placed := false
		for g := range groups {
			if groups[g].id.Equal(id) {
				groups[g].indexes = append(groups[g].indexes, i)
				groups[g].members = append(groups[g].members, r.Implementation)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, group{
				id:      id,
				text:    r.Identifier,
				indexes: []int{i},
				members: []string{r.Implementation},
			})
		}
	}

	sort.SliceStable(groups, func(a, b int) bool {
		if len(groups[a].members) != len(groups[b].members) {
			return len(groups[a].members) > len(groups[b].members)
		}
		return groups[a].text < groups[b].text
	})
	for g := range groups {
		sort.Strings(groups[g].members)
	}
	return groups
}

func compareGolden(golden string, groups []group, results []model.Result) Outcome {
	goldenID, err := swhid.Parse(golden)
	if err != nil {
		goldenID = nil
	}

	inGoldenGroup := make(map[int]bool)
	for _, g := range groups {
		match := g.text == golden
		if goldenID != nil {
			match = g.id.Equal(goldenID)
		}
		if match {
			for _, idx := range g.indexes {
				inGoldenGroup[idx] = true
			}
		}
	}

	conformant := true
	for i := range results {
		r := &results[i]
		switch {
		case r.Status == model.StatusSkipped:
		case r.Status == model.StatusPass && inGoldenGroup[i]:
		case r.Status == model.StatusPass:
			blameMismatch(r, goldenID, golden, "identifier does not match the expected value")
			conformant = false
		default:
			// Errored implementations keep their own kinds.
			conformant = false
		}
	}

	status := StatusConformant
	if !conformant {
		status = StatusFail
	}
	return Outcome{Status: status, Consensus: golden, Groups: publicGroups(groups), Results: results}
}

func compareAgreement(groups []group, results []model.Result, attempted int) Outcome {
	grouped := 0
	for _, g := range groups {
		grouped += len(g.members)
	}
	errored := attempted - grouped

	if len(groups) == 1 && errored == 0 {
		return Outcome{
			Status:    StatusAgreement,
			Consensus: groups[0].text,
			Groups:    publicGroups(groups),
			Results:   results,
		}
	}

	out := Outcome{Status: StatusDisagreement, Groups: publicGroups(groups), Results: results}

	winner := majorityGroup(groups)
	if winner == nil {
		return out
	}
	out.Consensus = winner.text
	for _, g := range groups {
		if g.text == winner.text {
			continue
		}
		for _, idx := range g.indexes {
			blameMismatch(&results[idx], winner.id, winner.text, "identifier disagrees with the consensus")
		}
	}
	return out
}

// majorityGroup picks the unique largest group with at least two members.
// A size tie means nobody can be blamed.
func majorityGroup(groups []group) *group {
	if len(groups) == 0 || len(groups[0].members) < 2 {
		return nil
	}
	if len(groups) > 1 && len(groups[1].members) == len(groups[0].members) {
		return nil
	}
	return &groups[0]
}

func compareNegative(expected model.ErrorKind, results []model.Result) Outcome {
	attempted := 0
	conformant := true
	for i := range results {
		r := &results[i]
		if r.Status == model.StatusSkipped {
			continue
		}
		attempted++

		switch {
		case r.Status == model.StatusPass:
			r.Status = model.StatusFail
			r.Error = &model.ErrorInfo{
				Kind:    model.KindMismatchError,
				Subtype: "unexpected_success",
				Message: fmt.Sprintf("expected %s but the computation succeeded", expected),
				Context: map[string]any{"expected_kind": string(expected), "identifier": r.Identifier},
			}
			conformant = false
		case r.Error != nil && r.Error.Kind == expected:
			// The documented rejection: observed kind stays on the record.
			r.Status = model.StatusPass
		default:
			actual := ""
			if r.Error != nil {
				actual = string(r.Error.Kind)
			}
			r.Status = model.StatusFail
			r.Error = &model.ErrorInfo{
				Kind:    model.KindMismatchError,
				Subtype: "error_kind",
				Message: fmt.Sprintf("expected %s, got %s", expected, orNone(actual)),
				Context: map[string]any{"expected_kind": string(expected), "actual_kind": actual},
			}
			conformant = false
		}
	}

	if attempted == 0 {
		return Outcome{Status: StatusSkipped, Results: results}
	}
	status := StatusConformant
	if !conformant {
		status = StatusFail
	}
	return Outcome{Status: status, Results: results}
}

// blameMismatch rewrites a passing result into a FAIL/MISMATCH_ERROR against
// the baseline identifier.
func blameMismatch(r *model.Result, baselineID *swhid.Identifier, baseline, message string) {
	var entries []diff.Entry
	actualID, err := swhid.Parse(r.Identifier)
	if err != nil {
		actualID = nil
	}
	entries = diff.Entries(baselineID, actualID)

	r.Status = model.StatusFail
	r.Error = &model.ErrorInfo{
		Kind:    model.KindMismatchError,
		Subtype: "identifier",
		Message: message,
		Context: map[string]any{"expected": baseline, "actual": r.Identifier},
		Diff:    entries,
	}
}

func publicGroups(groups []group) []Group {
	if len(groups) == 0 {
		return nil
	}
	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = Group{Identifier: g.text, Members: g.members}
	}
	return out
}

func orNone(s string) string {
	if s == "" {
		return "no error"
	}
	return s
}
