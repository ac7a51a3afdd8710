package services

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
)

// RNG is the randomness consumed by risk rolls and incident resolution.
// *rand.Rand satisfies it.
type RNG interface {
	Float64() float64
	IntN(n int) int
}

// RNGSource hands out one reproducible stream per shipment leg. draw counts
// how many rolls were already taken on that leg.
type RNGSource interface {
	Stream(shipmentID string, legIndex, draw int) RNG
}

// SeededSource keys a PCG stream by (seed, shipment, leg) and the draw counter,
// so replaying a shipment with the same seed reproduces every roll.
type SeededSource struct {
	Seed uint64
}

func NewSeededSource(seed uint64) SeededSource {
	return SeededSource{Seed: seed}
}

func (s SeededSource) Stream(shipmentID string, legIndex, draw int) RNG {
	h := fnv.New64a()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], s.Seed)
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(shipmentID))
	binary.LittleEndian.PutUint64(buf[:], uint64(legIndex))
	_, _ = h.Write(buf[:])

	return rand.New(rand.NewPCG(h.Sum64(), uint64(draw)))
}
