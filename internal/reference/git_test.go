package reference

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swhidcheck/swhidcheck/internal/gitfixture"
	"github.com/swhidcheck/swhidcheck/internal/swhid"
	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

func TestRevisionDigest(t *testing.T) {
	t.Parallel()

	fx, err := gitfixture.Build(t.TempDir())
	require.NoError(t, err)

	digest, err := revisionDigest(fx.Path, fx.Head)
	require.NoError(t, err)
	assert.Equal(t, fx.Head, hex.EncodeToString(digest))
}

func TestRevisionRejectsNonCommit(t *testing.T) {
	t.Parallel()

	fx, err := gitfixture.Build(t.TempDir())
	require.NoError(t, err)

	repo, err := git.PlainOpen(fx.Path)
	require.NoError(t, err)
	commit, err := repo.CommitObject(plumbing.NewHash(fx.Head))
	require.NoError(t, err)

	// A tree object exists in the store but is not a commit.
	_, err = revisionDigest(fx.Path, commit.TreeHash.String())
	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ref", verr.Field)
}

func TestReleaseDigest(t *testing.T) {
	t.Parallel()

	fx, err := gitfixture.Build(t.TempDir())
	require.NoError(t, err)

	tagID := fx.Tags["v1.0"].ObjectID
	digest, err := releaseDigest(fx.Path, tagID)
	require.NoError(t, err)
	assert.Equal(t, tagID, hex.EncodeToString(digest))
}

func TestReleaseRejectsLightweightTag(t *testing.T) {
	t.Parallel()

	fx, err := gitfixture.Build(t.TempDir())
	require.NoError(t, err)

	// A lightweight tag pins a commit, and a commit is not a release object.
	_, err = releaseDigest(fx.Path, fx.Head)
	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "annotated")
}

func TestGitDigestsNeedARepository(t *testing.T) {
	t.Parallel()

	void := t.TempDir()
	_, err := revisionDigest(void, strings.Repeat("a", 40))
	assert.ErrorIs(t, err, git.ErrRepositoryNotExists)

	_, err = releaseDigest(void, strings.Repeat("a", 40))
	assert.ErrorIs(t, err, git.ErrRepositoryNotExists)
}

func TestComputeRevisionFromSymbolicRefs(t *testing.T) {
	t.Parallel()

	fx, err := gitfixture.Build(t.TempDir())
	require.NoError(t, err)
	impl := newReference(t)

	req := computeRequest(swhid.TypeRevision, swhid.V1SHA1Hex, fx.Path)
	req.Ref = "feature"
	resp, err := impl.Compute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "swh:1:rev:"+fx.Branches["feature"], resp.Identifier)

	// No ref means HEAD.
	req.Ref = ""
	resp, err = impl.Compute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "swh:1:rev:"+fx.Head, resp.Identifier)

	// An annotated tag used as a revision peels to the commit it marks.
	req.Ref = "v1.0"
	resp, err = impl.Compute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "swh:1:rev:"+fx.Head, resp.Identifier)
}

func TestComputeReleaseFromTagName(t *testing.T) {
	t.Parallel()

	fx, err := gitfixture.Build(t.TempDir())
	require.NoError(t, err)
	impl := newReference(t)

	req := computeRequest(swhid.TypeRelease, swhid.V1SHA1Hex, fx.Path)
	req.Ref = "v1.0"
	resp, err := impl.Compute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "swh:1:rel:"+fx.Tags["v1.0"].ObjectID, resp.Identifier)
}
