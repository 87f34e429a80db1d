// Package hash provides key hashers for the sharded data structures.
package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Key lists the key types Sum64 accepts.
type Key interface {
	uint64 | string | int | int64 | uint32 | int32
}

// Sum64 hashes key with xxhash. Integer keys are hashed over their
// little-endian encoding so sequential IDs spread evenly across shards.
func Sum64[K Key](key K) uint64 {
	var n uint64
	switch k := any(key).(type) {
	case string:
		return xxhash.Sum64String(k)
	case uint64:
		n = k
	case int:
		n = uint64(k)
	case int64:
		n = uint64(k)
	case uint32:
		n = uint64(k)
	case int32:
		n = uint64(k)
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], n)
	return xxhash.Sum64(buf[:])
}
