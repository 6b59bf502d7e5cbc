package sample

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SplitByDay copies the valid rows of the sample file at path into one file
// per calendar date, named "<name>_<date>.csv" in outDir (the input's directory
// when outDir is empty). It returns the created paths in the order first seen.
// A date that reappears later in the input is appended to its existing file.
func SplitByDay(path, outDir string) (paths []string, err error) {
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	prefix := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer closeWithError(in, &err)

	var (
		date string
		out  *os.File
		w    *bufio.Writer
		seen = make(map[string]bool)
	)
	flush := func() error {
		if out == nil {
			return nil
		}
		if err := w.Flush(); err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	}

	p := NewParser()
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		row := p.Parse(line)
		if !row.Valid() {
			continue
		}

		if d := row.Date(); d != date {
			if err = flush(); err != nil {
				return nil, fmt.Errorf("closing %s: %w", date, err)
			}

			date = d
			name := filepath.Join(outDir, fmt.Sprintf("%s_%s.csv", prefix, date))
			if out, err = openDayFile(name, seen[date]); err != nil {
				return nil, fmt.Errorf("opening day file: %w", err)
			}
			w = bufio.NewWriter(out)
			if !seen[date] {
				seen[date] = true
				paths = append(paths, name)
			}
		}

		if _, err = w.WriteString(line + "\n"); err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("writing day file: %w", err)
		}
	}
	if err = scanner.Err(); err != nil {
		_ = flush()
		return nil, fmt.Errorf("reading samples: %w", err)
	}

	if err = flush(); err != nil {
		return nil, fmt.Errorf("closing %s: %w", date, err)
	}
	return paths, nil
}

// openDayFile truncates a day file the first time it is opened in a run and
// appends to it afterwards.
func openDayFile(name string, reopen bool) (*os.File, error) {
	if reopen {
		return os.OpenFile(name, os.O_APPEND|os.O_WRONLY, 0o644)
	}
	return os.Create(name)
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
