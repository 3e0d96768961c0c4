package ipset

import "fmt"

// Chunks splits entries into ceil(len/capacity) contiguous ordered slices of
// at most capacity entries each. Boundaries depend only on the input order, so
// re-chunking an unchanged list reproduces identical chunks. A non-positive
// capacity is a programming error.
func Chunks(entries []Entry, capacity int) [][]Entry {
	if capacity <= 0 {
		panic(fmt.Sprintf("ipset: non-positive chunk capacity %d", capacity))
	}
	if len(entries) == 0 {
		return nil
	}

	out := make([][]Entry, 0, (len(entries)+capacity-1)/capacity)
	for start := 0; start < len(entries); start += capacity {
		end := start + capacity
		if end > len(entries) {
			end = len(entries)
		}
		out = append(out, entries[start:end])
	}
	return out
}
