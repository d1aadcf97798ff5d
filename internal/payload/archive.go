package payload

import (
	"archive/tar"
	"compress/gzip"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

// extractArchive unpacks a tar.gz into dest, preserving file modes and
// symlinks. Entries with absolute paths or that resolve outside dest are
// rejected, as are link targets pointing out of the tree.
func extractArchive(ctx context.Context, src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("opening gzip stream of %s: %w", src, err)
	}
	defer gz.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if stderrors.Is(err, tar.ErrInsecurePath) {
			return errors.NewValidationError("archive", fmt.Sprintf("insecure entry path in %s", src), err)
		}
		if err != nil {
			return fmt.Errorf("reading archive %s: %w", src, err)
		}
		if err := extractEntry(dest, hdr, tr); err != nil {
			return err
		}
	}
}

func extractEntry(dest string, hdr *tar.Header, r io.Reader) error {
	target, err := secureJoin(dest, hdr.Name)
	if err != nil {
		return err
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, hdr.FileInfo().Mode().Perm())

	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, hdr.FileInfo().Mode().Perm())
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, r); err != nil {
			out.Close()
			return fmt.Errorf("writing %s: %w", target, err)
		}
		return out.Close()

	case tar.TypeSymlink:
		if filepath.IsAbs(hdr.Linkname) {
			return errors.NewValidationError("archive", fmt.Sprintf("entry %q links to absolute path %q", hdr.Name, hdr.Linkname), nil)
		}
		resolved := filepath.Join(filepath.Dir(target), hdr.Linkname)
		if resolved != dest && !strings.HasPrefix(resolved, dest+string(filepath.Separator)) {
			return errors.NewValidationError("archive", fmt.Sprintf("entry %q links outside the extraction root", hdr.Name), nil)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.Symlink(hdr.Linkname, target)

	case tar.TypeLink:
		source, err := secureJoin(dest, hdr.Linkname)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.Link(source, target)

	case tar.TypeXGlobalHeader, tar.TypeXHeader:
		return nil
	}
	// Device nodes and other exotic entries have no place in a test payload.
	return errors.NewValidationError("archive", fmt.Sprintf("entry %q has unsupported type %q", hdr.Name, rune(hdr.Typeflag)), nil)
}

// secureJoin anchors name under root and fails when the joined path would
// escape it.
func secureJoin(root, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", errors.NewValidationError("archive", fmt.Sprintf("entry %q is an absolute path", name), nil)
	}
	joined := filepath.Join(root, name)
	if joined != root && !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", errors.NewValidationError("archive", fmt.Sprintf("entry %q escapes the extraction root", name), nil)
	}
	return joined, nil
}
