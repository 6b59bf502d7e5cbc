package sample

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
)

// Series holds the valid rows of a sample file as parallel arrays, in file order.
type Series struct {
	Path      string
	Timestamp []string
	Epoch     []float64
	X, Y, Z   []float64
	Total     []float64

	Skipped int // Number of invalid or header lines dropped while loading
}

// Len returns the number of samples in the series.
func (s *Series) Len() int {
	return len(s.Epoch)
}

// FirstDate returns the date of the first sample, or an empty string for an empty series.
func (s *Series) FirstDate() string {
	if s.Len() == 0 {
		return ""
	}
	r := Row{Timestamp: s.Timestamp[0]}
	return r.Date()
}

// FromRows builds a Series from already parsed rows, dropping invalid ones.
func FromRows(rows []*Row) *Series {
	var s Series
	for _, r := range rows {
		if !r.Valid() {
			s.Skipped++
			continue
		}
		s.Append(r)
	}
	return &s
}

// Append adds a valid row to the end of the series.
func (s *Series) Append(r *Row) {
	s.Timestamp = append(s.Timestamp, r.Timestamp)
	s.Epoch = append(s.Epoch, r.Epoch())
	s.X = append(s.X, r.X)
	s.Y = append(s.Y, r.Y)
	s.Z = append(s.Z, r.Z)
	s.Total = append(s.Total, r.Total())
}

// Loader reads sample CSV files into a Series.
type Loader struct {
	parser *Parser
	logger *slog.Logger
}

// WithLoaderLogger sets the logger used to report skipped rows and progress
func WithLoaderLogger(logger *slog.Logger) func(*Loader) {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithParser sets the row parser, e.g. to change the time zone
func WithParser(p *Parser) func(*Loader) {
	return func(l *Loader) {
		l.parser = p
	}
}

// NewLoader creates a Loader with a UTC parser and a discard logger
func NewLoader(options ...func(*Loader)) *Loader {
	l := Loader{
		parser: NewParser(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(&l)
	}
	return &l
}

// LoadSeries reads path with a default Loader.
func LoadSeries(path string) (*Series, error) {
	return NewLoader().Load(path)
}

// Load reads the file twice: the first pass counts valid rows so that the
// second can fill arrays allocated once at their final size.
func (l *Loader) Load(path string) (*Series, error) {
	count := 0
	err := l.scan(path, func(_ *Row) {
		count++
	})
	if err != nil {
		return nil, fmt.Errorf("counting rows: %w", err)
	}

	s := Series{
		Path:      path,
		Timestamp: make([]string, 0, count),
		Epoch:     make([]float64, 0, count),
		X:         make([]float64, 0, count),
		Y:         make([]float64, 0, count),
		Z:         make([]float64, 0, count),
		Total:     make([]float64, 0, count),
	}

	var skipped int
	err = l.scanAll(path, func(r *Row) {
		if !r.Valid() {
			skipped++
			return
		}
		s.Append(r)
	})
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	s.Skipped = skipped

	l.logger.Info("loaded samples",
		slog.String("path", path),
		slog.String("rows", humanize.Comma(int64(s.Len()))),
		slog.Int("skipped", s.Skipped))

	return &s, nil
}

// scan calls fn for every valid row.
func (l *Loader) scan(path string, fn func(*Row)) error {
	return l.scanAll(path, func(r *Row) {
		if r.Valid() {
			fn(r)
		}
	})
}

// scanAll calls fn for every non-empty line, valid or not. Epoch is resolved
// before fn sees the row, so a bad date-time shows up as an invalid row.
func (l *Loader) scanAll(path string, fn func(*Row)) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer closeWithError(f, &err)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		row := l.parser.Parse(line)
		if !row.Valid() && !errors.Is(row.Err, ErrHeader) {
			l.logger.Debug("skipping row", slog.String("line", line), slog.String("error", row.Err.Error()))
		}
		fn(row)
	}
	return scanner.Err()
}
