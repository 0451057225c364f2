package utils

import (
	"math"
	"strings"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"milliseconds", 45 * time.Millisecond, "45ms"},
		{"one second", 1 * time.Second, "1.0s"},
		{"seconds with decimal", 1500 * time.Millisecond, "1.5s"},
		{"one minute", 1 * time.Minute, "1m"},
		{"minutes and seconds", 2*time.Minute + 30*time.Second, "2m 30s"},
		{"one hour", 1 * time.Hour, "1h"},
		{"hours and minutes", 1*time.Hour + 15*time.Minute, "1h 15m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatDuration(tt.duration)
			if result != tt.expected {
				t.Errorf("FormatDuration(%v) = %s; want %s", tt.duration, result, tt.expected)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name     string
		number   int64
		expected string
	}{
		{"zero", 0, "0"},
		{"triple digit", 123, "123"},
		{"thousands", 1234, "1,234"},
		{"millions", 1234567, "1,234,567"},
		{"negative", -4321, "-4,321"},
		{"negative triple digit", -999, "-999"},
		{"max int64", math.MaxInt64, "9,223,372,036,854,775,807"},
		{"min int64", math.MinInt64, "-9,223,372,036,854,775,808"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatNumber(tt.number)
			if result != tt.expected {
				t.Errorf("FormatNumber(%d) = %s; want %s", tt.number, result, tt.expected)
			}
		})
	}
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLen   int
		expected string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"truncated", "hello world", 8, "hello..."},
		{"newlines", "line1\nline2", 20, "line1 line2"},
		{"tiny max", "hello", 2, "..."},
		{"multibyte", "ñandú ñandú", 6, "ñan..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TruncateText(tt.text, tt.maxLen)
			if result != tt.expected {
				t.Errorf("TruncateText(%q, %d) = %q; want %q", tt.text, tt.maxLen, result, tt.expected)
			}
		})
	}
}

func TestPrefix(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		n        int
		expected string
	}{
		{"shorter than limit", "abc", 10, "abc"},
		{"cut", "abcdef", 3, "abc"},
		{"zero", "abc", 0, ""},
		{"multibyte", "héllo", 2, "hé"},
		{"long", strings.Repeat("x", 250), 200, strings.Repeat("x", 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := Prefix(tt.s, tt.n); result != tt.expected {
				t.Errorf("Prefix(%q, %d) = %q; want %q", tt.s, tt.n, result, tt.expected)
			}
		})
	}
}
