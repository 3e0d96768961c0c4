package hostcheck

import "testing"

func TestNormalizeServer(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1.1.1.1", "1.1.1.1:53"},
		{"8.8.8.8:5353", "8.8.8.8:5353"},
	}

	for _, tc := range tests {
		if got := NormalizeServer(tc.input); got != tc.expected {
			t.Errorf("NormalizeServer(%q) = %q, expected %q", tc.input, got, tc.expected)
		}
	}
}

func TestNewCustomResolverNormalizes(t *testing.T) {
	r := NewCustomResolver([]string{"1.1.1.1", "9.9.9.9:53"})
	if r.Servers[0] != "1.1.1.1:53" || r.Servers[1] != "9.9.9.9:53" {
		t.Errorf("Unexpected servers: %v", r.Servers)
	}
}
