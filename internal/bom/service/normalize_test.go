package service

import "testing"

func TestParseEuropeanNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1.000,000", "1000.000", true},
		{"1,000", "1.000", true},
		{"12.345.678,25", "12345678.25", true},
		{"0,500", "0.500", true},
		{"10", "10", true},
		{"  2,5  ", "2.5", true},
		{"", "", false},
		{"abc", "", false},
		{"1,2,3", "", false},
	}

	for _, tt := range tests {
		got, ok := parseEuropeanNumber(tt.in)
		if ok != tt.ok {
			t.Errorf("parseEuropeanNumber(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && got.String() != tt.want {
			t.Errorf("parseEuropeanNumber(%q) = %s, want %s", tt.in, got.String(), tt.want)
		}
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Object ID", "object id"},
		{"  Object   ID  ", "object id"},
		{"Un.", "un"},
		{"QUANTITY", "quantity"},
		{"Object description", "object description"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalizeLabel(tt.in); got != tt.want {
			t.Errorf("normalizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
