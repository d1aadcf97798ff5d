// Package gitfixture builds the deterministic sample repository used by
// revision, release, and snapshot cases, and gives the engine ref access to
// arbitrary git payloads. Fixed author identity and timestamps make every
// build byte-identical, so object ids are stable across runs and machines.
package gitfixture

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	authorName  = "Test User"
	authorEmail = "test@example.com"

	// First timestamp of the fixture; every subsequent commit or tag is 60
	// seconds later. Encoded with a +0000 offset.
	baseTick = 1112911993
	tickStep = 60
)

// Tag describes one tag ref of a repository.
type Tag struct {
	Name      string
	ObjectID  string // annotated tag object id, empty for lightweight tags
	TargetID  string // commit the tag ultimately points at
	Annotated bool
}

// Refs is the ref inventory of a repository, the raw material for snapshot
// computation and per-ref case expansion.
type Refs struct {
	HeadTarget string // symbolic target of HEAD, e.g. "refs/heads/main"
	HeadID     string // commit HEAD resolves to
	Branches   map[string]string
	Tags       map[string]Tag
}

// Fixture is a built sample repository.
type Fixture struct {
	Path     string
	Head     string // tip of main
	Branches map[string]string
	Tags     map[string]Tag
}

type clock struct {
	tick int64
}

func (c *clock) next() time.Time {
	t := time.Unix(baseTick+c.tick*tickStep, 0).In(time.UTC)
	c.tick++
	return t
}

func (c *clock) signature() object.Signature {
	when := c.next()
	return object.Signature{Name: authorName, Email: authorEmail, When: when}
}

// Build creates the sample repository in dir: main carries README.md
// ("Initial commit"), branch feature adds FEATURE.txt ("Add feature file"),
// and annotated tag v1.0 ("Release v1.0") marks main's tip. HEAD stays on
// main. Building into two directories yields identical object ids.
func Build(dir string) (*Fixture, error) {
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
		Bare:        false,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing fixture repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening fixture worktree: %w", err)
	}

	clk := &clock{}
	mainHead, err := commitFile(wt, dir, "README.md", "# Sample Repo\n", "Initial commit", clk)
	if err != nil {
		return nil, err
	}

	if err := wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("feature"),
		Create: true,
	}); err != nil {
		return nil, fmt.Errorf("creating feature branch: %w", err)
	}
	featureHead, err := commitFile(wt, dir, "FEATURE.txt", "feature\n", "Add feature file", clk)
	if err != nil {
		return nil, err
	}

	if err := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("main")}); err != nil {
		return nil, fmt.Errorf("returning to main: %w", err)
	}

	tagSig := clk.signature()
	tagRef, err := repo.CreateTag("v1.0", mainHead, &git.CreateTagOptions{
		Tagger:  &tagSig,
		Message: "Release v1.0",
	})
	if err != nil {
		return nil, fmt.Errorf("creating v1.0 tag: %w", err)
	}

	return &Fixture{
		Path: dir,
		Head: mainHead.String(),
		Branches: map[string]string{
			"main":    mainHead.String(),
			"feature": featureHead.String(),
		},
		Tags: map[string]Tag{
			"v1.0": {
				Name:      "v1.0",
				ObjectID:  tagRef.Hash().String(),
				TargetID:  mainHead.String(),
				Annotated: true,
			},
		},
	}, nil
}

func commitFile(wt *git.Worktree, dir, name, content, message string, clk *clock) (plumbing.Hash, error) {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("writing %s: %w", name, err)
	}
	if _, err := wt.Add(name); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("staging %s: %w", name, err)
	}
	sig := clk.signature()
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author:    &sig,
		Committer: &sig,
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("committing %s: %w", name, err)
	}
	return hash, nil
}

// ResolveRef turns a symbolic revision ref into its full commit hash.
// Annotated tags peel to the commit they mark. Empty refs and 40-character
// hashes pass through untouched so callers can forward them verbatim.
func ResolveRef(repoPath, ref string) (string, error) {
	if ref == "" || isFullHash(ref) {
		return ref, nil
	}
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("opening repository %s: %w", repoPath, err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return "", fmt.Errorf("resolving %q in %s: %w", ref, repoPath, err)
	}
	return hash.String(), nil
}

// ResolveTag turns a tag name into the full hash its ref points at, without
// peeling: annotated tags resolve to the tag object, lightweight ones to the
// commit. Full hashes pass through untouched.
func ResolveTag(repoPath, name string) (string, error) {
	if isFullHash(name) {
		return name, nil
	}
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("opening repository %s: %w", repoPath, err)
	}
	ref, err := repo.Reference(plumbing.NewTagReferenceName(name), true)
	if err != nil {
		return "", fmt.Errorf("resolving tag %q in %s: %w", name, repoPath, err)
	}
	return ref.Hash().String(), nil
}

// ListRefs inventories every branch and tag plus the HEAD target.
func ListRefs(repoPath string) (Refs, error) {
	out := Refs{Branches: map[string]string{}, Tags: map[string]Tag{}}

	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return out, fmt.Errorf("opening repository %s: %w", repoPath, err)
	}

	iter, err := repo.References()
	if err != nil {
		return out, fmt.Errorf("listing refs of %s: %w", repoPath, err)
	}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		switch {
		case ref.Name().IsBranch():
			out.Branches[ref.Name().Short()] = ref.Hash().String()
		case ref.Name().IsTag():
			tag, err := describeTag(repo, ref)
			if err != nil {
				return err
			}
			out.Tags[ref.Name().Short()] = tag
		}
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("walking refs of %s: %w", repoPath, err)
	}

	if headRef, err := repo.Reference(plumbing.HEAD, false); err == nil && headRef.Type() == plumbing.SymbolicReference {
		out.HeadTarget = headRef.Target().String()
	}
	if head, err := repo.Head(); err == nil {
		out.HeadID = head.Hash().String()
	}
	return out, nil
}

// describeTag distinguishes annotated tags (ref points at a tag object) from
// lightweight ones (ref points straight at a commit).
func describeTag(repo *git.Repository, ref *plumbing.Reference) (Tag, error) {
	tagObj, err := repo.TagObject(ref.Hash())
	switch {
	case err == nil:
		return Tag{
			Name:      ref.Name().Short(),
			ObjectID:  ref.Hash().String(),
			TargetID:  tagObj.Target.String(),
			Annotated: true,
		}, nil
	case stderrors.Is(err, plumbing.ErrObjectNotFound):
		return Tag{Name: ref.Name().Short(), TargetID: ref.Hash().String()}, nil
	default:
		return Tag{}, fmt.Errorf("inspecting tag %s: %w", ref.Name().Short(), err)
	}
}

func isFullHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
