package subtitle

import (
	"fmt"
	"math"
)

// RangeSeparator joins the two endpoints of a block's time range.
const RangeSeparator = " --> "

// FormatTimestamp renders seconds as H:MM:SS,mmm, left padded with zeros to
// at least 11 characters. Seconds are rounded to the nearest millisecond with
// halves rounded away from zero; the carry propagates into the larger units.
// Negative and NaN inputs render as zero, +Inf saturates.
func FormatTimestamp(seconds float64) string {
	ms := toMillis(seconds)

	h := ms / 3_600_000
	ms %= 3_600_000
	m := ms / 60_000
	ms %= 60_000
	s := ms / 1000
	ms %= 1000

	// One hour digit plus fixed-width fields gives the 11 character minimum.
	return fmt.Sprintf("%d:%02d:%02d,%03d", h, m, s, ms)
}

// FormatRange renders "START --> END".
func FormatRange(start, end float64) string {
	return FormatTimestamp(start) + RangeSeparator + FormatTimestamp(end)
}

func toMillis(seconds float64) int64 {
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	v := math.Round(seconds * 1000)
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
