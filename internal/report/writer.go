package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Output formats accepted by WriteFile and the config's settings.format key.
const (
	FormatJSON   = "json"
	FormatNDJSON = "ndjson"
)

// WriteJSON renders the whole record as two-space indented JSON.
func WriteJSON(w io.Writer, rec *Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

// ndjsonHeader is the first line of a stream: everything except the cases.
type ndjsonHeader struct {
	SchemaVersion   string                 `json:"schema_version"`
	Run             RunInfo                `json:"run"`
	Implementations []ImplementationRecord `json:"implementations"`
	Aggregates      Aggregates             `json:"aggregates"`
}

// WriteNDJSON renders a header line carrying the run metadata followed by
// one line per case, so consumers can tail a run without buffering it.
func WriteNDJSON(w io.Writer, rec *Record) error {
	enc := json.NewEncoder(w)
	header := ndjsonHeader{
		SchemaVersion:   rec.SchemaVersion,
		Run:             rec.Run,
		Implementations: rec.Implementations,
		Aggregates:      rec.Aggregates,
	}
	if err := enc.Encode(header); err != nil {
		return err
	}
	for i := range rec.Tests {
		if err := enc.Encode(&rec.Tests[i]); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes the record to path in the requested format, creating
// parent directories as needed. An unknown format falls back to JSON.
func WriteFile(path, format string, rec *Record) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}

	switch format {
	case FormatNDJSON:
		err = WriteNDJSON(f, rec)
	default:
		err = WriteJSON(f, rec)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}
