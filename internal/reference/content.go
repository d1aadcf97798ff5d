package reference

import (
	"fmt"
	"io"
	"os"

	"github.com/swhidcheck/swhidcheck/internal/swhid"
	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

// contentDigest hashes a file as a git blob: `blob <size>\x00` followed by
// the raw bytes, streamed from disk. No transcoding or line-ending
// normalization happens anywhere on this path.
func contentDigest(path string, algo swhid.HashAlgorithm) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening payload: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("inspecting payload: %w", err)
	}
	if st.IsDir() {
		return nil, errors.NewValidationError("payload", fmt.Sprintf("%s is a directory, not file content", path), nil)
	}

	h := newDigest(algo)
	fmt.Fprintf(h, "blob %d\x00", st.Size())
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("hashing payload %s: %w", path, err)
	}
	return h.Sum(nil), nil
}
