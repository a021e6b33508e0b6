package logic

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0 seconds"},
		{time.Second, "1 second"},
		{59 * time.Second, "59 seconds"},
		{60 * time.Second, "1 minute 0 seconds"},
		{61 * time.Second, "1 minute 1 second"},
		{75 * time.Second, "1 minute 15 seconds"},
		{125*time.Second + 900*time.Millisecond, "2 minutes 5 seconds"},
		{-time.Second, "0 seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.in); got != tt.want {
				t.Errorf("FormatDuration(%v): got %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 15, 42, 0, time.Local)
	if got := FormatTimestamp(ts); got != "260301T0915" {
		t.Errorf("FormatTimestamp: got %q, want 260301T0915", got)
	}
}

func TestNameTable(t *testing.T) {
	names := NameTable{17: "Room 1"}
	if got := names.Name(17); got != "Room 1" {
		t.Errorf("Name(17): got %q", got)
	}
	if got := names.Name(4); got != "unknown" {
		t.Errorf("Name(4): got %q, want unknown", got)
	}
}
