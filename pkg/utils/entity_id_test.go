package utils

import "testing"

func TestNormalizeEntityID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"kr", "kr"},
		{"KR", "kr"},
		{" us ", "us"},
		{"Nvidia", "nvidia"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizeEntityID(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeEntityID(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestIsValidEntityID(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"kr", true},
		{"us-tech", true},
		{"topic_ai.v2", true},
		{"", false},
		{"KR", false},
		{"../etc", false},
		{"a..b", false},
		{".hidden", false},
		{"a/b", false},
		{"space here", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsValidEntityID(tt.input); got != tt.valid {
				t.Errorf("IsValidEntityID(%q) = %v, want %v", tt.input, got, tt.valid)
			}
		})
	}
}
