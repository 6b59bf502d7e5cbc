package bucket

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
)

// Sweep keeps the first non-empty bucket and every bucket whose mean on
// channel c moved by more than limit, as a proportion of the mean of the
// previous non-empty bucket. Empty buckets are never kept and never count as a
// previous value.
func Sweep(buckets []Bucket, c Channel, limit float64) []Bucket {
	var (
		kept []Bucket
		prev = math.NaN()
	)
	for i := range buckets {
		b := buckets[i]
		if b.Empty() {
			continue
		}
		mean := b.Stats[c].Mean
		if kept == nil || changed(prev, mean, limit) {
			kept = append(kept, b)
		}
		prev = mean
	}
	return kept
}

func changed(old, new, limit float64) bool {
	if math.IsNaN(old) {
		return false
	}
	return math.Abs(new-old) > math.Abs(old)*limit
}

// WriteSweepCSV writes the bucket index and the mean of every channel of the swept buckets
func WriteSweepCSV(out io.Writer, buckets []Bucket) error {
	w := csv.NewWriter(out)
	record := make([]string, 1+numChannels)
	for i := range buckets {
		record[0] = strconv.Itoa(buckets[i].Index)
		for c, s := range buckets[i].Stats {
			record[1+c] = formatFloat(s.Mean)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
