package util

import (
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		in       int64
		expected string
	}{
		{0, "0 B"},
		{500, "500 B"},
		{1536, "1.5 KiB"},
		{-1, "0 B"},
	}

	for _, tc := range testCases {
		if got := FormatBytes(tc.in); got != tc.expected {
			t.Errorf("FormatBytes(%d) = %q, expected %q", tc.in, got, tc.expected)
		}
	}
}

func TestFormatCount(t *testing.T) {
	if got := FormatCount(1234567); got != "1,234,567" {
		t.Errorf("FormatCount(1234567) = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	testCases := []struct {
		in       time.Duration
		expected string
	}{
		{1500 * time.Millisecond, "1.5s"},
		{90*time.Second + 400*time.Millisecond, "1m30s"},
	}

	for _, tc := range testCases {
		if got := FormatDuration(tc.in); got != tc.expected {
			t.Errorf("FormatDuration(%v) = %q, expected %q", tc.in, got, tc.expected)
		}
	}
}
