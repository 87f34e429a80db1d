package utils

const (
	bitSize       = 32 << (^uint(0) >> 63)
	maxIntHeadBit = 1 << (bitSize - 2)
)

// CeilToPowerOfTwo returns the smallest power of two >= n, with a floor of 2.
// Ring buffers and shard tables use it so positions can be masked instead of
// divided.
func CeilToPowerOfTwo(n int) int {
	if n > maxIntHeadBit {
		panic("utils: argument is too large")
	}
	if n <= 2 {
		return 2
	}

	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
