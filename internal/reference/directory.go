package reference

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/swhidcheck/swhidcheck/internal/swhid"
	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

const (
	modeFile    = "100644"
	modeExec    = "100755"
	modeSymlink = "120000"
	modeTree    = "40000"
)

// directoryDigest hashes a directory as nested git tree objects. Entry names
// compare as raw bytes, never Unicode-normalized; empty subdirectories vanish
// exactly as they do in a git index, though an empty root still has an id.
func directoryDigest(ctx context.Context, root string, algo swhid.HashAlgorithm) ([]byte, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("inspecting payload: %w", err)
	}
	if !st.IsDir() {
		return nil, errors.NewValidationError("payload", fmt.Sprintf("%s is not a directory", root), nil)
	}
	digest, _, err := treeDigest(ctx, root, algo)
	return digest, err
}

type treeEntry struct {
	mode   string
	name   string
	digest []byte
}

// treeSortKey orders entries the way git does: by name bytes, directories
// compared as though their name ended in '/'.
func treeSortKey(e treeEntry) string {
	if e.mode == modeTree {
		return e.name + "/"
	}
	return e.name
}

// treeDigest hashes one directory level, recursing into children. The empty
// flag marks a level with no hashable entries, which the parent omits.
func treeDigest(ctx context.Context, dir string, algo swhid.HashAlgorithm) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	listing, err := os.ReadDir(dir)
	if err != nil {
		return nil, false, fmt.Errorf("reading directory: %w", err)
	}

	entries := make([]treeEntry, 0, len(listing))
	for _, item := range listing {
		// Repository bookkeeping is not part of the tree.
		if item.Name() == ".git" {
			continue
		}
		entry, keep, err := hashDirEntry(ctx, dir, item, algo)
		if err != nil {
			return nil, false, err
		}
		if keep {
			entries = append(entries, entry)
		}
	}
	if len(entries) == 0 {
		return gitObjectHash(algo, "tree", nil), true, nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return treeSortKey(entries[i]) < treeSortKey(entries[j])
	})

	var body bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&body, "%s %s\x00", e.mode, e.name)
		body.Write(e.digest)
	}
	return gitObjectHash(algo, "tree", body.Bytes()), false, nil
}

func hashDirEntry(ctx context.Context, dir string, item fs.DirEntry, algo swhid.HashAlgorithm) (treeEntry, bool, error) {
	full := filepath.Join(dir, item.Name())

	switch {
	case item.IsDir():
		digest, empty, err := treeDigest(ctx, full, algo)
		if err != nil || empty {
			return treeEntry{}, false, err
		}
		return treeEntry{mode: modeTree, name: item.Name(), digest: digest}, true, nil

	case item.Type()&fs.ModeSymlink != 0:
		target, err := os.Readlink(full)
		if err != nil {
			return treeEntry{}, false, fmt.Errorf("reading symlink: %w", err)
		}
		// A symlink is a blob whose content is the link target.
		return treeEntry{mode: modeSymlink, name: item.Name(), digest: gitObjectHash(algo, "blob", []byte(target))}, true, nil

	default:
		info, err := item.Info()
		if err != nil {
			return treeEntry{}, false, fmt.Errorf("inspecting %s: %w", full, err)
		}
		if !info.Mode().IsRegular() {
			return treeEntry{}, false, errors.NewValidationError("payload",
				fmt.Sprintf("%s is not a regular file", full), nil)
		}
		mode := modeFile
		if info.Mode()&0o111 != 0 {
			mode = modeExec
		}
		digest, err := contentDigest(full, algo)
		if err != nil {
			return treeEntry{}, false, err
		}
		return treeEntry{mode: mode, name: item.Name(), digest: digest}, true, nil
	}
}
