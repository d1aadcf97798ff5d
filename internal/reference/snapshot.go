package reference

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/swhidcheck/swhidcheck/internal/gitfixture"
	"github.com/swhidcheck/swhidcheck/internal/swhid"
)

// snapshotDigest hashes the full ref state of a repository as a Software
// Heritage snapshot object: one entry per ref, sorted by name bytes, each
// `<target_type> <name>\x00<len>:<target>`. HEAD appears as an alias whose
// target is the symbolic ref name; annotated tags target their release
// object; branches and lightweight tags target commits.
func snapshotDigest(repoPath string) ([]byte, error) {
	refs, err := gitfixture.ListRefs(repoPath)
	if err != nil {
		return nil, err
	}
	body, err := snapshotBody(refs)
	if err != nil {
		return nil, err
	}
	return gitObjectHash(swhid.SHA1, "snapshot", body), nil
}

type snapshotEntry struct {
	name       string
	targetType string
	target     []byte
}

func snapshotBody(refs gitfixture.Refs) ([]byte, error) {
	entries := make([]snapshotEntry, 0, len(refs.Branches)+len(refs.Tags)+1)

	switch {
	case refs.HeadTarget != "":
		entries = append(entries, snapshotEntry{name: "HEAD", targetType: "alias", target: []byte(refs.HeadTarget)})
	case refs.HeadID != "":
		// Detached HEAD points at a commit directly.
		target, err := rawHash(refs.HeadID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, snapshotEntry{name: "HEAD", targetType: "revision", target: target})
	}

	for name, id := range refs.Branches {
		target, err := rawHash(id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, snapshotEntry{name: "refs/heads/" + name, targetType: "revision", target: target})
	}
	for name, tag := range refs.Tags {
		entry := snapshotEntry{name: "refs/tags/" + name, targetType: "revision"}
		id := tag.TargetID
		if tag.Annotated {
			entry.targetType = "release"
			id = tag.ObjectID
		}
		target, err := rawHash(id)
		if err != nil {
			return nil, err
		}
		entry.target = target
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	var body bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&body, "%s %s\x00%d:", e.targetType, escapeRefName(e.name), len(e.target))
		body.Write(e.target)
	}
	return body.Bytes(), nil
}

// escapeRefName escapes newlines in ref names as newline-space, keeping the
// entry framing unambiguous.
func escapeRefName(name string) string {
	return strings.ReplaceAll(name, "\n", "\n ")
}

func rawHash(id string) ([]byte, error) {
	raw, err := hex.DecodeString(id)
	if err != nil {
		return nil, fmt.Errorf("decoding ref target %q: %w", id, err)
	}
	return raw, nil
}
