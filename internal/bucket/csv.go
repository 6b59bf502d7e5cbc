package bucket

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// CSVHeader names the columns written by WriteCSV
var CSVHeader = []string{
	"epoch", "bucket", "size",
	"x_mean", "x_ptp", "x_rms", "x_stddev",
	"y_mean", "y_ptp", "y_rms", "y_stddev",
	"z_mean", "z_ptp", "z_rms", "z_stddev",
	"tot_mean", "tot_ptp", "tot_rms", "tot_stddev",
	"baselined",
}

type writerConfig struct {
	skipEmpty bool
	header    bool
}

// WriterOption configures WriteCSV
type WriterOption func(*writerConfig)

// WithSkipEmpty leaves buckets without samples out of the file
func WithSkipEmpty() WriterOption {
	return func(c *writerConfig) {
		c.skipEmpty = true
	}
}

// WithHeader writes CSVHeader as the first line
func WithHeader() WriterOption {
	return func(c *writerConfig) {
		c.header = true
	}
}

// WriteCSV writes one line per bucket. Undefined statistics are written as "NaN".
func WriteCSV(out io.Writer, buckets []Bucket, options ...WriterOption) error {
	w := csv.NewWriter(out)

	var cfg writerConfig
	for _, option := range options {
		option(&cfg)
	}

	if cfg.header {
		if err := w.Write(CSVHeader); err != nil {
			return err
		}
	}

	record := make([]string, len(CSVHeader))
	for i := range buckets {
		b := &buckets[i]
		if cfg.skipEmpty && b.Empty() {
			continue
		}

		record[0] = formatFloat(b.Epoch)
		record[1] = strconv.Itoa(b.Index)
		record[2] = strconv.Itoa(b.Count)
		for c, s := range b.Stats {
			col := 3 + c*4
			record[col] = formatFloat(s.Mean)
			record[col+1] = formatFloat(s.PeakToPeak)
			record[col+2] = formatFloat(s.RMS)
			record[col+3] = formatFloat(s.StdDev)
		}
		record[len(record)-1] = "0"
		if b.Baselined {
			record[len(record)-1] = "1"
		}

		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadCSV reads buckets written by WriteCSV, with or without the header line
func ReadCSV(in io.Reader) ([]Bucket, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = len(CSVHeader)
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	var buckets []Bucket
	for line := 1; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			return buckets, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading bucket line %d: %w", line, err)
		}
		if line == 1 && record[0] == CSVHeader[0] {
			continue
		}

		b, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("parsing bucket line %d: %w", line, err)
		}
		buckets = append(buckets, b)
	}
}

func parseRecord(record []string) (Bucket, error) {
	var (
		b   Bucket
		err error
	)
	if b.Epoch, err = strconv.ParseFloat(record[0], 64); err != nil {
		return b, err
	}
	if b.Index, err = strconv.Atoi(record[1]); err != nil {
		return b, err
	}
	if b.Count, err = strconv.Atoi(record[2]); err != nil {
		return b, err
	}
	for c := range b.Stats {
		col := 3 + c*4
		fields := [4]*float64{&b.Stats[c].Mean, &b.Stats[c].PeakToPeak, &b.Stats[c].RMS, &b.Stats[c].StdDev}
		for i, f := range fields {
			if *f, err = strconv.ParseFloat(record[col+i], 64); err != nil {
				return b, err
			}
		}
	}
	b.Baselined = record[len(record)-1] == "1"
	return b, nil
}
