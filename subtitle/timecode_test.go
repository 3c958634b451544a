package subtitle

import (
	"math"
	"testing"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    string
	}{
		{"zero", 0.0, "0:00:00,000"},
		{"fractional", 3.27, "0:00:03,270"},
		{"hour minute second milli", 3661.005, "1:01:01,005"},
		{"sub second", 0.52, "0:00:00,520"},
		{"last millisecond of minute", 59.999, "0:00:59,999"},
		{"rounds up into next second", 0.9996, "0:00:01,000"},
		{"carry into hour", 3599.9996, "1:00:00,000"},
		{"half millisecond boundary", 0.9995, "0:00:01,000"},
		{"half millisecond boundary carries into hour", 3599.9995, "1:00:00,000"},
		{"rounds down below half", 0.0004, "0:00:00,000"},
		{"half rounds away from zero", 0.0005, "0:00:00,001"},
		{"two digit hours", 36000, "10:00:00,000"},
		{"negative clamps", -1.5, "0:00:00,000"},
		{"nan clamps", math.NaN(), "0:00:00,000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTimestamp(tt.seconds); got != tt.want {
				t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestFormatTimestampWidth(t *testing.T) {
	for _, s := range []float64{0, 0.001, 1, 61, 599.5, 3600, 86399.999} {
		got := FormatTimestamp(s)
		if len(got) < 11 {
			t.Errorf("FormatTimestamp(%v) = %q, shorter than 11 characters", s, got)
		}
		if got[len(got)-4] != ',' {
			t.Errorf("FormatTimestamp(%v) = %q, want comma before milliseconds", s, got)
		}
	}
}

func TestFormatTimestampStable(t *testing.T) {
	// Re-formatting a value that is already millisecond aligned must not drift.
	for _, s := range []float64{0.1, 0.52, 3.27, 1.1, 3661.005, 7322.999} {
		first := FormatTimestamp(s)
		ms := toMillis(s)
		if second := FormatTimestamp(float64(ms) / 1000); second != first {
			t.Errorf("FormatTimestamp not stable for %v: %q then %q", s, first, second)
		}
	}
}

func TestFormatRange(t *testing.T) {
	got := FormatRange(0.1, 0.52)
	want := "0:00:00,100 --> 0:00:00,520"
	if got != want {
		t.Errorf("FormatRange = %q, want %q", got, want)
	}
}
