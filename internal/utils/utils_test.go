package utils

import "testing"

func TestIsValidLuhn(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"79927398713", true}, // валидный номер
		{"1234567812345670", true},
		{"1234567812345678", false},
		{"", false},
		{"abcdef", false},
		{"49927398716", true},
		{"49927398717", false},
		{"79927398710", false},
	}

	for _, tt := range tests {
		if got := IsValidLuhn(tt.input); got != tt.valid {
			t.Errorf("IsValidLuhn(%q) = %v; want %v", tt.input, got, tt.valid)
		}
	}
}

func TestCardLast4(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"4276 1600 1234 5678", "5678"},
		{"4276160012345678", "5678"},
		{"123", "123"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CardLast4(tt.input); got != tt.want {
			t.Errorf("CardLast4(%q) = %q; want %q", tt.input, got, tt.want)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"+7 916 123-45-67", "+7 *** ***-45-67"},
		{"89161234567", "8******4567"},
		{"12345", "12345"},
	}

	for _, tt := range tests {
		if got := MaskPhone(tt.input); got != tt.want {
			t.Errorf("MaskPhone(%q) = %q; want %q", tt.input, got, tt.want)
		}
	}
}
