package zimage

import (
	"crypto/rand"
	"encoding/binary"
)

// RandomSeed generates a random non-negative seed for image generation.
// Uses crypto/rand so concurrent workers never collide on seeds.
func RandomSeed() int64 {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// crypto/rand failing is effectively unheard of; a fixed seed
		// beats panicking inside a request.
		return 42
	}

	seed := int64(binary.LittleEndian.Uint64(buf[:]))
	if seed < 0 {
		seed = -seed
	}
	// -MinInt64 == MinInt64, still negative after negation.
	if seed < 0 {
		seed = 0
	}
	return seed
}
