package joincode

import (
	"strings"
	"testing"
)

func TestMint(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := Mint()
		if err != nil {
			t.Fatalf("Mint failed: %v", err)
		}
		if len(code) != Length {
			t.Errorf("Expected code length %d, got %d (%q)", Length, len(code), code)
		}
		for _, c := range code {
			if !strings.ContainsRune(alphabet, c) {
				t.Errorf("Code %q contains %q outside the alphabet", code, c)
			}
		}
		seen[code] = true
	}
	// 100 draws from 28.6M combinations should essentially never collide
	if len(seen) < 95 {
		t.Errorf("Expected mostly unique codes, got %d unique of 100", len(seen))
	}
}

func TestAlphabetExcludesAmbiguousCharacters(t *testing.T) {
	for _, c := range "0O1IL" {
		if strings.ContainsRune(alphabet, c) {
			t.Errorf("Alphabet should not contain ambiguous character %q", c)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"abcde", "ABCDE"},
		{"  AbCdE  ", "ABCDE"},
		{"XYZ23", "XYZ23"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.expected {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
