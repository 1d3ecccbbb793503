package models

import (
	"testing"
	"time"
)

func TestParseDateKey(t *testing.T) {
	tests := []struct {
		in       string
		expected string
		wantErr  bool
	}{
		{"20240131", "20240131", false},
		{"2024-01-31", "20240131", false},
		{"2024-02-30", "", true},
		{"2024/01/31", "", true},
		{"", "", true},
		{"../etc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDateKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDateKey(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("ParseDateKey(%q) = %q, want %q", tt.in, got, tt.expected)
			}
		})
	}
}

func TestDateKey_UsesLocation(t *testing.T) {
	ts := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*60*60)

	if got := DateKey(ts, time.UTC); got != "20240301" {
		t.Errorf("DateKey(UTC) = %q, want 20240301", got)
	}
	if got := DateKey(ts, tokyo); got != "20240302" {
		t.Errorf("DateKey(JST) = %q, want 20240302", got)
	}
}
