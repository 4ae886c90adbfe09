// Package util holds small generic helpers shared by the bus runner and the capture tools.
package util

// CloneSlice returns a copy of src with length size.
// A size of 0 copies len(src) elements; a larger size zero-fills the tail.
func CloneSlice[T any](src []T, size int) []T {
	if size == 0 {
		size = len(src)
	}
	clone := make([]T, size)
	copy(clone, src)

	return clone
}
