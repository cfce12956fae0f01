// Package batch slices work into fixed-size groups.
package batch

import "fmt"

// Split partitions items into consecutive groups of at most size elements,
// preserving order. The last group may be shorter.
func Split[T any](items []T, size int) ([][]T, error) {
	if size < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", size)
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		out = append(out, items[i:end:end])
	}
	return out, nil
}
