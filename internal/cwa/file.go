package cwa

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// OutputPaths returns the sample CSV and metadata side-file paths for the log
// at path: <name>.csv and <name>_metadata.txt in outDir, or next to the log
// when outDir is empty.
func OutputPaths(path, outDir string) (csvPath, metadataPath string) {
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(outDir, name+".csv"), filepath.Join(outDir, name+"_metadata.txt")
}

// DecodeFile decodes the log at path into a sample CSV at csvPath. The
// metadata side-file is written to metadataPath when the log carries a
// metadata section.
func (d *Decoder) DecodeFile(path, csvPath, metadataPath string, options ...func(*CSVWriter)) (res *Result, err error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}
	defer closeWithError(in, &err)

	out, err := os.Create(csvPath)
	if err != nil {
		return nil, fmt.Errorf("creating sample file: %w", err)
	}
	defer closeWithError(out, &err)

	w := NewCSVWriter(out, options...)
	res, err = d.Decode(in, w)
	if err != nil {
		return res, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err = w.Flush(); err != nil {
		return res, fmt.Errorf("flushing sample file: %w", err)
	}

	if res.Metadata == nil {
		d.logger.Warn("log has no metadata section", slog.String("path", path))
		return res, nil
	}

	meta, err := os.Create(metadataPath)
	if err != nil {
		return res, fmt.Errorf("creating metadata file: %w", err)
	}
	defer closeWithError(meta, &err)

	if err = WriteMetadata(meta, res.Metadata); err != nil {
		return res, fmt.Errorf("writing metadata file: %w", err)
	}
	return res, nil
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
