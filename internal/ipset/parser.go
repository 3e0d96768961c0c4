// Package ipset provides parsing, exact CIDR compaction, and capacity-bounded
// chunking of IPv4 address sets. Parsing is best-effort per line; compaction
// merges contiguous addresses into efficient CIDR blocks while maintaining
// identical reachability.
package ipset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

var (
	// ErrInvalidFormat indicates a token that is not a valid IPv4 address or CIDR block.
	ErrInvalidFormat = errors.New("invalid address format")
	// ErrUnsupportedFamily indicates an IPv6 token. Only IPv4 is supported.
	ErrUnsupportedFamily = errors.New("IPv6 addresses are not supported")
)

// Entry is an immutable IPv4 address or CIDR block: a 32-bit base address plus
// a prefix length in [0,32]. A bare address has prefix 32.
type Entry struct {
	addr   uint32
	prefix int
}

// NewEntry builds an Entry from a base address and prefix length. The base is
// masked to the network address so that equal blocks compare equal.
func NewEntry(addr uint32, prefix int) Entry {
	return Entry{addr: addr & prefixMask(prefix), prefix: prefix}
}

func prefixMask(prefix int) uint32 {
	if prefix <= 0 {
		return 0
	}
	return ^uint32(0) << (32 - uint(prefix))
}

// Addr returns the base address as a 32-bit integer.
func (e Entry) Addr() uint32 { return e.addr }

// Prefix returns the prefix length.
func (e Entry) Prefix() int { return e.prefix }

// IsSingle reports whether the entry is a bare /32 address.
func (e Entry) IsSingle() bool { return e.prefix == 32 }

// Size returns the number of addresses the entry covers.
func (e Entry) Size() uint64 { return uint64(1) << (32 - uint(e.prefix)) }

// String renders the entry as dotted quad, with a /prefix suffix for blocks.
func (e Entry) String() string {
	s := uint32ToIP(e.addr).String()
	if e.prefix == 32 {
		return s
	}
	return fmt.Sprintf("%s/%d", s, e.prefix)
}

func uint32ToIP(v uint32) net.IP {
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func ipToUint32(ip net.IP) uint32 {
	ipv4 := ip.To4()
	if ipv4 == nil {
		return 0
	}
	return uint32(ipv4[0])<<24 | uint32(ipv4[1])<<16 | uint32(ipv4[2])<<8 | uint32(ipv4[3])
}

// ParseEntry parses a single raw token into an Entry. Tokens containing a
// colon are rejected as IPv6 before any other validation.
func ParseEntry(token string) (Entry, error) {
	if strings.Contains(token, ":") {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnsupportedFamily, token)
	}

	addrPart := token
	prefix := 32
	if slash := strings.IndexByte(token, '/'); slash >= 0 {
		addrPart = token[:slash]
		p, err := strconv.Atoi(token[slash+1:])
		if err != nil || p < 0 || p > 32 {
			return Entry{}, fmt.Errorf("%w: bad prefix length in %q", ErrInvalidFormat, token)
		}
		prefix = p
	}

	ip := net.ParseIP(addrPart)
	if ip == nil || ip.To4() == nil {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidFormat, token)
	}

	return NewEntry(ipToUint32(ip), prefix), nil
}

// LineError records a rejected input line.
type LineError struct {
	Line  int
	Token string
	Err   error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Result is the outcome of parsing an address list: the accepted entries in
// input order (deduplicated), plus the per-line errors that were skipped.
type Result struct {
	Entries []Entry
	Errors  []LineError
}

// ParseReader reads a CSV-like address list: one token per line, optional
// extra columns ignored, a first column equal to "ip" treated as a header row,
// blank lines and #-comments skipped. Malformed lines are collected in
// Result.Errors and parsing continues; it never aborts the whole input.
func ParseReader(r io.Reader) Result {
	var res Result
	seen := make(map[Entry]bool)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		token := line
		if comma := strings.IndexByte(line, ','); comma >= 0 {
			token = strings.TrimSpace(line[:comma])
		}
		if token == "" {
			continue
		}
		if strings.EqualFold(token, "ip") {
			continue // column header
		}

		entry, err := ParseEntry(token)
		if err != nil {
			res.Errors = append(res.Errors, LineError{Line: lineNo, Token: token, Err: err})
			continue
		}
		if seen[entry] {
			continue
		}
		seen[entry] = true
		res.Entries = append(res.Entries, entry)
	}

	if err := scanner.Err(); err != nil {
		res.Errors = append(res.Errors, LineError{Line: lineNo, Err: err})
	}
	return res
}
