package strings

import (
	"testing"
)

func TestTruncateCell(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string truncated", "hello world this is a long string", 15, "hello world ..."},
		{"multi-line error flattened", "request failed\r\n\tconnection reset", 60, "request failed connection reset"},
		{"unicode cut on rune boundary", "ééééééé", 5, "éé..."},
		{"maxLen clamped", "hello world", 1, "h..."},
		{"empty", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateCell(tt.input, tt.maxLen); got != tt.expected {
				t.Errorf("TruncateCell(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
			}
		})
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		secret   string
		expected string
	}{
		{"", ""},
		{"short", "****"},
		{"exactly12chr", "****"},
		{"eyJhbGciOiJub25lIn0.payload.sig", "eyJh....sig"},
	}

	for _, tt := range tests {
		t.Run(tt.secret, func(t *testing.T) {
			if got := MaskSecret(tt.secret); got != tt.expected {
				t.Errorf("MaskSecret(%q) = %q, want %q", tt.secret, got, tt.expected)
			}
		})
	}
}
