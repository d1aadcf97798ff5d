// Package payload stages the test inputs a suite feeds to implementations.
// Filesystem payloads are used in place and never mutated; tar.gz archives
// are unpacked into a per-run staging root shared by every implementation.
package payload

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/swhidcheck/swhidcheck/internal/swhid"
)

// Category identifies where a payload's bytes come from.
type Category string

const (
	CategoryContent   Category = "content"
	CategoryDirectory Category = "directory"
	CategoryArchive   Category = "archive"
	CategoryGit       Category = "git"
	CategoryNegative  Category = "negative"
)

// Payload is one staged test input. Path points at the effective on-disk
// location: for archives that is the extraction result, not the tarball.
type Payload struct {
	Name            string
	Category        Category
	Type            swhid.ObjectType
	Path            string
	Size            int64
	Unicode         bool
	PercentEncoding bool
}

// Stage resolves a payload to its effective path and measures it. Content
// and directory payloads stay where they are; archives are extracted under
// stagingRoot (idempotent, so concurrent cases share one extraction).
// Unicode is detected from file names when the config did not set it;
// non-ASCII file content still needs the explicit flag.
func Stage(ctx context.Context, p Payload, stagingRoot string) (Payload, error) {
	abs, err := filepath.Abs(p.Path)
	if err != nil {
		return p, fmt.Errorf("resolving payload %q: %w", p.Name, err)
	}
	p.Path = abs

	switch p.Category {
	case CategoryContent:
		info, err := os.Stat(p.Path)
		if err != nil {
			return p, fmt.Errorf("staging payload %q: %w", p.Name, err)
		}
		if !info.Mode().IsRegular() {
			return p, fmt.Errorf("staging payload %q: %s is not a regular file", p.Name, p.Path)
		}
		p.Size = info.Size()
		return p, nil

	case CategoryNegative:
		// The input is supposed to be rejected, so any shape passes staging,
		// including a path that does not exist at all.
		if info, err := os.Stat(p.Path); err == nil && info.Mode().IsRegular() {
			p.Size = info.Size()
		}
		return p, nil

	case CategoryDirectory:
		info, err := os.Stat(p.Path)
		if err != nil {
			return p, fmt.Errorf("staging payload %q: %w", p.Name, err)
		}
		if !info.IsDir() {
			return p, fmt.Errorf("staging payload %q: %s is not a directory", p.Name, p.Path)
		}
		return measureTree(p)

	case CategoryArchive:
		dest := filepath.Join(stagingRoot, p.Name)
		if _, err := os.Stat(dest); err != nil {
			if err := extractArchive(ctx, p.Path, dest); err != nil {
				return p, fmt.Errorf("staging payload %q: %w", p.Name, err)
			}
		}
		p.Path = unwrapSingleDir(dest)
		return measureTree(p)

	case CategoryGit:
		info, err := os.Stat(p.Path)
		if err != nil {
			return p, fmt.Errorf("staging payload %q: %w", p.Name, err)
		}
		if !info.IsDir() {
			return p, fmt.Errorf("staging payload %q: %s is not a directory", p.Name, p.Path)
		}
		return p, nil
	}
	return p, fmt.Errorf("staging payload %q: unknown category %q", p.Name, p.Category)
}

// measureTree fills Size with the byte total of regular files and flags
// Unicode when any entry name carries non-ASCII bytes. Tree manifests hash
// raw name bytes, so names are what a computing implementation must handle.
func measureTree(p Payload) (Payload, error) {
	var total int64
	unicode := p.Unicode
	err := filepath.WalkDir(p.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !unicode && nonASCII(d.Name()) {
			unicode = true
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return p, fmt.Errorf("measuring payload %q: %w", p.Name, err)
	}
	p.Size = total
	p.Unicode = unicode
	return p, nil
}

// unwrapSingleDir descends into the archive's sole top-level directory when
// there is one, the common tarball layout.
func unwrapSingleDir(dest string) string {
	entries, err := os.ReadDir(dest)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return dest
	}
	return filepath.Join(dest, entries[0].Name())
}

func nonASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return true
		}
	}
	return false
}
