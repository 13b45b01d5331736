// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package upload

// DefaultChunkSize is the number of rows per insert call when none is set.
const DefaultChunkSize = 500

// Chunks splits items into consecutive slices of size. Every slice except
// possibly the last has exactly size elements. A size of zero or less uses
// DefaultChunkSize. The slices share items' backing array.
func Chunks[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}
