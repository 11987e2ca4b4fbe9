package binary

import (
	"encoding/binary"
	"math"
)

// Uint16LE decodes a little-endian 16-bit integer at b[off:].
func Uint16LE(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off:])
}

// Uint32LE decodes a little-endian 32-bit integer at b[off:].
func Uint32LE(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

// Uint64LE decodes a little-endian 64-bit integer at b[off:]. The packet
// scratch buffer carries eight bytes of trailing slack so the bit-pack
// decoder can issue this load at any byte offset inside a packet.
func Uint64LE(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off:])
}

// Float32LE decodes a little-endian IEEE-754 single at b[off:].
func Float32LE(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

// Float64LE decodes a little-endian IEEE-754 double at b[off:].
func Float64LE(b []byte, off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
}
