package reference

import (
	stderrors "errors"
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

// revisionDigest returns the commit id behind an already pinned ref. The
// repository is consulted only to confirm the object really is a commit; the
// id itself is the digest.
func revisionDigest(repoPath, ref string) ([]byte, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", repoPath, err)
	}
	hash := plumbing.NewHash(ref)
	if _, err := repo.CommitObject(hash); err != nil {
		if stderrors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, errors.NewValidationError("ref", fmt.Sprintf("%q does not name a commit", ref), nil)
		}
		return nil, fmt.Errorf("reading commit %s: %w", ref, err)
	}
	return hash[:], nil
}

// releaseDigest returns the annotated tag object id behind a pinned tag ref.
// A lightweight tag resolves straight to a commit and has no release object
// to identify.
func releaseDigest(repoPath, ref string) ([]byte, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", repoPath, err)
	}
	hash := plumbing.NewHash(ref)
	if _, err := repo.TagObject(hash); err != nil {
		if stderrors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, errors.NewValidationError("ref", fmt.Sprintf("%q is not an annotated tag", ref), nil)
		}
		return nil, fmt.Errorf("reading tag %s: %w", ref, err)
	}
	return hash[:], nil
}
