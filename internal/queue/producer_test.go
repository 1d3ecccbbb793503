package queue

import "testing"

func TestAttendanceSubject(t *testing.T) {
	tests := []struct {
		date     string
		expected string
	}{
		{"20240105", "attendance.20240105"},
		{"20991231", "attendance.20991231"},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			if got := attendanceSubject(tt.date); got != tt.expected {
				t.Errorf("attendanceSubject(%q) = %q, want %q", tt.date, got, tt.expected)
			}
		})
	}
}
