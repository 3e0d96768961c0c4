package ipset

import (
	"errors"
	"strings"
	"testing"
)

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected string
		wantErr  error
	}{
		{
			name:     "Bare address",
			token:    "192.0.2.1",
			expected: "192.0.2.1",
		},
		{
			name:     "CIDR block",
			token:    "10.0.0.0/24",
			expected: "10.0.0.0/24",
		},
		{
			name:     "CIDR block with host bits masked",
			token:    "10.0.0.7/30",
			expected: "10.0.0.4/30",
		},
		{
			name:    "Octet out of range",
			token:   "10.0.0.256",
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "Too few octets",
			token:   "10.0.0",
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "Bad prefix",
			token:   "10.0.0.0/33",
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "Negative prefix",
			token:   "10.0.0.0/-1",
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "Empty prefix",
			token:   "10.0.0.0/",
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "IPv6 address",
			token:   "2001:db8::1",
			wantErr: ErrUnsupportedFamily,
		},
		{
			name:    "IPv6 CIDR",
			token:   "2001:db8::/64",
			wantErr: ErrUnsupportedFamily,
		},
		{
			name:    "Garbage",
			token:   "not-an-ip",
			wantErr: ErrInvalidFormat,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			entry, err := ParseEntry(tc.token)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Expected error %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEntry(%q) failed: %v", tc.token, err)
			}
			if entry.String() != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, entry.String())
			}
		})
	}
}

func TestParseReader(t *testing.T) {
	input := strings.Join([]string{
		"ip,vendor_name,notes",
		"192.0.2.1,acme,office",
		"",
		"# trusted ranges",
		"10.0.0.0/24",
		"192.0.2.1", // duplicate
		"2001:db8::1",
		"300.1.1.1",
		"198.51.100.7",
	}, "\n")

	res := ParseReader(strings.NewReader(input))

	if len(res.Entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d: %v", len(res.Entries), res.Entries)
	}
	expected := []string{"192.0.2.1", "10.0.0.0/24", "198.51.100.7"}
	for i, want := range expected {
		if res.Entries[i].String() != want {
			t.Errorf("Entry %d: expected %s, got %s", i, want, res.Entries[i])
		}
	}

	if len(res.Errors) != 2 {
		t.Fatalf("Expected 2 line errors, got %d: %v", len(res.Errors), res.Errors)
	}
	if !errors.Is(res.Errors[0].Err, ErrUnsupportedFamily) {
		t.Errorf("Expected IPv6 rejection, got %v", res.Errors[0].Err)
	}
	if !errors.Is(res.Errors[1].Err, ErrInvalidFormat) {
		t.Errorf("Expected invalid format, got %v", res.Errors[1].Err)
	}
	// Parsing continued past the bad lines.
	if res.Entries[2].String() != "198.51.100.7" {
		t.Errorf("Expected parsing to continue after rejected lines")
	}
}

func TestParseReaderHeaderOnly(t *testing.T) {
	res := ParseReader(strings.NewReader("ip\n"))
	if len(res.Entries) != 0 || len(res.Errors) != 0 {
		t.Errorf("Header-only input should yield nothing, got %v / %v", res.Entries, res.Errors)
	}
}
