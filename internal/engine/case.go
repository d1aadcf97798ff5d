package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/swhidcheck/swhidcheck/internal/config"
	"github.com/swhidcheck/swhidcheck/internal/gitfixture"
	"github.com/swhidcheck/swhidcheck/internal/model"
	"github.com/swhidcheck/swhidcheck/internal/payload"
	"github.com/swhidcheck/swhidcheck/internal/swhid"
)

// Case is one executable unit of a suite: a staged payload, an object type,
// and the variant every implementation must answer in. File payloads produce
// one Case per variant under the same id; git payloads expand each branch,
// tag, and snapshot expectation into its own id.
type Case struct {
	ID         string
	Category   string
	PayloadRef string
	Type       swhid.ObjectType
	Variant    swhid.Variant
	Ref        string
	Qualifiers []string
	Payload    payload.Payload

	// Golden pins the expected identifier; empty means consensus mode.
	Golden string
	// Negative documents the error kind every implementation must raise.
	Negative model.ErrorKind
}

// ExpandCases turns the configured payloads into the flat case list the run
// executes. Relative payload paths resolve against baseDir; archives and git
// fixtures are staged under stagingRoot before expansion so every case points
// at its effective on-disk path.
func ExpandCases(ctx context.Context, cfg *config.Config, baseDir, stagingRoot string) ([]Case, error) {
	var cases []Case

	for _, p := range cfg.Payloads.Content {
		expanded, err := expandFile(ctx, p, payload.CategoryContent, swhid.TypeContent, baseDir, stagingRoot)
		if err != nil {
			return nil, err
		}
		cases = append(cases, expanded...)
	}
	for _, p := range cfg.Payloads.Directory {
		expanded, err := expandFile(ctx, p, payload.CategoryDirectory, swhid.TypeDirectory, baseDir, stagingRoot)
		if err != nil {
			return nil, err
		}
		cases = append(cases, expanded...)
	}
	for _, p := range cfg.Payloads.Archive {
		expanded, err := expandFile(ctx, p, payload.CategoryArchive, swhid.TypeDirectory, baseDir, stagingRoot)
		if err != nil {
			return nil, err
		}
		cases = append(cases, expanded...)
	}
	for _, p := range cfg.Payloads.Git {
		expanded, err := expandGit(ctx, p, baseDir, stagingRoot)
		if err != nil {
			return nil, err
		}
		cases = append(cases, expanded...)
	}
	for _, p := range cfg.Payloads.Negative {
		c, err := expandNegative(ctx, p, baseDir, stagingRoot)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}

	return cases, nil
}

func expandFile(ctx context.Context, p config.FilePayload, cat payload.Category, typ swhid.ObjectType, baseDir, stagingRoot string) ([]Case, error) {
	staged, err := payload.Stage(ctx, payload.Payload{
		Name:            p.Name,
		Category:        cat,
		Type:            typ,
		Path:            resolvePath(baseDir, p.Path),
		Unicode:         p.Unicode,
		PercentEncoding: p.PercentEncoding,
	}, stagingRoot)
	if err != nil {
		return nil, err
	}

	variants, err := variantSet(p.Variants, p.Expected)
	if err != nil {
		return nil, fmt.Errorf("payload %q: %w", p.Name, err)
	}

	cases := make([]Case, 0, len(variants))
	for _, v := range variants {
		cases = append(cases, Case{
			ID:         p.Name,
			Category:   string(cat),
			PayloadRef: p.Path,
			Type:       typ,
			Variant:    v,
			Qualifiers: append([]string(nil), p.Qualifiers...),
			Payload:    staged,
			Golden:     p.Expected[v.String()],
		})
	}
	return cases, nil
}

func expandGit(ctx context.Context, p config.GitPayload, baseDir, stagingRoot string) ([]Case, error) {
	ref := p.Path
	path := resolvePath(baseDir, p.Path)
	if p.Fixture != "" {
		ref = "fixture:" + p.Fixture
		path = filepath.Join(stagingRoot, "fixtures", p.Name)
		if _, err := gitfixture.Build(path); err != nil {
			return nil, fmt.Errorf("building fixture for payload %q: %w", p.Name, err)
		}
	}

	staged, err := payload.Stage(ctx, payload.Payload{
		Name:     p.Name,
		Category: payload.CategoryGit,
		Path:     path,
	}, stagingRoot)
	if err != nil {
		return nil, err
	}

	variants, err := variantSet(p.Variants, nil)
	if err != nil {
		return nil, fmt.Errorf("payload %q: %w", p.Name, err)
	}

	// Sub-case skeletons in a stable order: the plain revision first, then
	// branches and tags by name, the snapshot last.
	type sub struct {
		id     string
		typ    swhid.ObjectType
		ref    string
		golden string
	}
	var subs []sub
	if p.Revision != "" {
		subs = append(subs, sub{id: p.Name + "-revision", typ: swhid.TypeRevision, ref: p.Revision})
	}
	for _, branch := range sortedKeys(p.Branches) {
		subs = append(subs, sub{
			id:     fmt.Sprintf("%s-branch-%s", p.Name, branch),
			typ:    swhid.TypeRevision,
			ref:    branch,
			golden: p.Branches[branch],
		})
	}
	for _, tag := range sortedKeys(p.Tags) {
		subs = append(subs, sub{
			id:     fmt.Sprintf("%s-tag-%s", p.Name, tag),
			typ:    swhid.TypeRelease,
			ref:    tag,
			golden: p.Tags[tag],
		})
	}
	if p.Snapshot != nil {
		subs = append(subs, sub{id: p.Name + "-snapshot", typ: swhid.TypeSnapshot, golden: *p.Snapshot})
	}

	cases := make([]Case, 0, len(subs)*len(variants))
	for _, s := range subs {
		for _, v := range variants {
			cases = append(cases, Case{
				ID:         s.id,
				Category:   s.typ.LongName(),
				PayloadRef: ref,
				Type:       s.typ,
				Variant:    v,
				Ref:        s.ref,
				Payload:    staged,
				Golden:     s.golden,
			})
		}
	}
	return cases, nil
}

func expandNegative(ctx context.Context, p config.NegativePayload, baseDir, stagingRoot string) (Case, error) {
	typ, err := swhid.ParseObjectType(p.Type)
	if err != nil {
		return Case{}, fmt.Errorf("payload %q: %w", p.Name, err)
	}

	staged, err := payload.Stage(ctx, payload.Payload{
		Name:     p.Name,
		Category: payload.CategoryNegative,
		Type:     typ,
		Path:     resolvePath(baseDir, p.Path),
	}, stagingRoot)
	if err != nil {
		return Case{}, err
	}

	return Case{
		ID:         p.Name,
		Category:   string(payload.CategoryNegative),
		PayloadRef: p.Path,
		Type:       typ,
		Variant:    swhid.V1SHA1Hex,
		Payload:    staged,
		Negative:   model.ErrorKind(p.ExpectError),
	}, nil
}

// variantSet resolves the variants a payload runs under: the declared list in
// order, then any additional expectation keys sorted, defaulting to v1 hex
// when the config names nothing.
func variantSet(tags []string, expected map[string]string) ([]swhid.Variant, error) {
	seen := make(map[string]bool, len(tags)+len(expected))
	var out []swhid.Variant
	add := func(tag string) error {
		if seen[tag] {
			return nil
		}
		v, err := swhid.ParseVariantTag(tag)
		if err != nil {
			return err
		}
		seen[tag] = true
		out = append(out, v)
		return nil
	}

	for _, tag := range tags {
		if err := add(tag); err != nil {
			return nil, err
		}
	}
	for _, tag := range sortedKeys(expected) {
		if err := add(tag); err != nil {
			return nil, err
		}
	}
	if len(out) == 0 {
		out = append(out, swhid.V1SHA1Hex)
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
