package sample

import (
	"math"
	"strconv"
	"time"
)

// ticksPerSecond is the resolution timestamps are rounded to before being
// split into whole seconds and milliseconds (10 µs).
const ticksPerSecond = 100_000

// FormatTimestamp renders epoch seconds as "YYYY-MM-DD HH:MM:SS.fff" in UTC.
// The epoch is first rounded to 10 µs, then the sub-second part is truncated
// to whole milliseconds.
func FormatTimestamp(epoch float64) string {
	ticks := int64(math.Round(epoch * ticksPerSecond))
	secs := floorDiv(ticks, ticksPerSecond)
	millis := (ticks - secs*ticksPerSecond) / (ticksPerSecond / 1000)

	b := make([]byte, 0, len(dateTimeLayout)+4)
	b = time.Unix(secs, 0).UTC().AppendFormat(b, dateTimeLayout)
	b = append(b, '.')
	if millis < 100 {
		b = append(b, '0')
	}
	if millis < 10 {
		b = append(b, '0')
	}
	return string(strconv.AppendInt(b, millis, 10))
}

// FormatLine renders one sample CSV line without the line terminator.
func FormatLine(epoch, x, y, z float64) string {
	b := make([]byte, 0, 64)
	b = append(b, FormatTimestamp(epoch)...)
	for _, v := range [3]float64{x, y, z} {
		b = append(b, ',')
		b = strconv.AppendFloat(b, v, 'f', 6, 64)
	}
	return string(b)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
