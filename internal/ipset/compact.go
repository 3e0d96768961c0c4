package ipset

import (
	"math/bits"
	"sort"
)

// Compact merges the singleton (/32) partition of entries into the minimum
// set of aligned CIDR blocks covering exactly the same addresses. Existing
// blocks (prefix < 32) pass through unmodified and are unioned with the merge
// result; no attempt is made to merge singleton output with pre-existing
// blocks or to combine two blocks. The result is deduplicated and sorted, so
// the operation is deterministic and idempotent.
func Compact(entries []Entry) []Entry {
	if len(entries) == 0 {
		return []Entry{}
	}

	var addrs []uint32
	var blocks []Entry
	for _, e := range entries {
		if e.IsSingle() {
			addrs = append(addrs, e.Addr())
		} else {
			blocks = append(blocks, e)
		}
	}

	merged := mergeConsecutive(addrs)

	out := make([]Entry, 0, len(merged)+len(blocks))
	out = append(out, merged...)
	out = append(out, blocks...)
	return sortDedupe(out)
}

// mergeConsecutive sorts and deduplicates raw addresses, finds maximal runs of
// consecutive values, and converts each run to exact CIDR blocks.
func mergeConsecutive(addrs []uint32) []Entry {
	if len(addrs) == 0 {
		return nil
	}

	unique := make(map[uint32]bool, len(addrs))
	for _, a := range addrs {
		unique[a] = true
	}
	sorted := make([]uint32, 0, len(unique))
	for a := range unique {
		sorted = append(sorted, a)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var out []Entry
	for i := 0; i < len(sorted); {
		start := sorted[i]
		end := start
		j := i + 1
		for j < len(sorted) && sorted[j] == end+1 {
			end = sorted[j]
			j++
		}
		out = append(out, runToExactBlocks(start, end)...)
		i = j
	}
	return out
}

// runToExactBlocks covers the inclusive range [start, end] with the fewest
// CIDR blocks containing exactly that range. At each step the block size is
// the largest power of two that both fits in the remaining run length and is
// aligned to the current start address.
func runToExactBlocks(start, end uint32) []Entry {
	var out []Entry
	for {
		remaining := uint64(end) - uint64(start) + 1

		// Largest power of two <= remaining.
		size := uint64(1) << (bits.Len64(remaining) - 1)

		// Alignment: a block of size 2^k may only start at a multiple of 2^k.
		if start != 0 {
			align := uint64(start & -start)
			if align < size {
				size = align
			}
		}

		prefix := 32 - bits.TrailingZeros64(size)
		out = append(out, Entry{addr: start, prefix: prefix})

		if uint64(end)-uint64(start)+1 == size {
			return out
		}
		start += uint32(size)
	}
}

// sortDedupe orders entries by base address, then by prefix length (wider
// blocks first at the same base), and removes exact duplicates.
func sortDedupe(entries []Entry) []Entry {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].addr != entries[j].addr {
			return entries[i].addr < entries[j].addr
		}
		return entries[i].prefix < entries[j].prefix
	})
	out := entries[:0]
	for i, e := range entries {
		if i > 0 && e == entries[i-1] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Strings renders entries for use in a rule condition value.
func Strings(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.String()
	}
	return out
}
