package cwa

import (
	"bufio"
	"io"

	"github.com/roman-kulish/accel-crunch/internal/sample"
)

const (
	lineEndDOS   = "\r\n"
	lineEndLinux = "\n"
)

// SampleWriter receives decoded samples in log order
type SampleWriter interface {
	WriteSample(epoch, x, y, z float64) error
}

// CSVWriter writes decoded samples in the sample CSV format
type CSVWriter struct {
	w       *bufio.Writer
	lineEnd string
	header  bool
	started bool
}

// WithLinuxLineEndings terminates lines with "\n" instead of "\r\n"
func WithLinuxLineEndings(linux bool) func(*CSVWriter) {
	return func(c *CSVWriter) {
		if linux {
			c.lineEnd = lineEndLinux
		} else {
			c.lineEnd = lineEndDOS
		}
	}
}

// WithHeader controls whether the column header line is written
func WithHeader(header bool) func(*CSVWriter) {
	return func(c *CSVWriter) {
		c.header = header
	}
}

// NewCSVWriter creates a writer emitting a header and "\r\n" line ends by default.
// Flush must be called once all samples are written.
func NewCSVWriter(w io.Writer, options ...func(*CSVWriter)) *CSVWriter {
	c := CSVWriter{
		w:       bufio.NewWriterSize(w, 64*1024),
		lineEnd: lineEndDOS,
		header:  true,
	}
	for _, option := range options {
		option(&c)
	}
	return &c
}

func (c *CSVWriter) start() error {
	if c.started {
		return nil
	}
	c.started = true
	if !c.header {
		return nil
	}
	_, err := c.w.WriteString(sample.Header + c.lineEnd)
	return err
}

// WriteSample writes one line
func (c *CSVWriter) WriteSample(epoch, x, y, z float64) error {
	if err := c.start(); err != nil {
		return err
	}
	if _, err := c.w.WriteString(sample.FormatLine(epoch, x, y, z)); err != nil {
		return err
	}
	_, err := c.w.WriteString(c.lineEnd)
	return err
}

// Flush writes any buffered data, and the header when no sample was written
func (c *CSVWriter) Flush() error {
	if err := c.start(); err != nil {
		return err
	}
	return c.w.Flush()
}
