package e57

import (
	"encoding/binary"
	"math"

	binpkg "github.com/lidarlab/go-e57/internal/binary"
)

// fileBuilder assembles a synthetic E57 file. Content is appended to a
// logical byte stream; build() lays it out as CRC-terminated pages and
// patches the file header.
type fileBuilder struct {
	pageSize uint64
	logical  []byte

	xmlPhys uint64
	xmlLen  uint64
}

func newFileBuilder(pageSize uint64) *fileBuilder {
	return &fileBuilder{
		pageSize: pageSize,
		logical:  make([]byte, 48), // header, patched in build()
	}
}

// physOffset returns the physical offset of the current logical end.
func (b *fileBuilder) physOffset() uint64 {
	logicalSize := b.pageSize - 4
	off := uint64(len(b.logical))
	return (off/logicalSize)*b.pageSize + off%logicalSize
}

// addSection appends a CompressedVector section holding the given
// packets and returns its physical offset. A zero logicalLength override
// keeps the correct section length.
func (b *fileBuilder) addSection(packets [][]byte, logicalLength uint64) uint64 {
	sectionPhys := b.physOffset()

	total := uint64(32)
	for _, p := range packets {
		total += uint64(len(p))
	}
	if logicalLength == 0 {
		logicalLength = total
	}

	hdr := make([]byte, 32)
	hdr[0] = 1 // section id
	binary.LittleEndian.PutUint64(hdr[8:], logicalLength)
	b.logical = append(b.logical, hdr...)
	dataPhys := b.physOffset()
	binary.LittleEndian.PutUint64(b.logical[uint64(len(b.logical))-16:], dataPhys)

	for _, p := range packets {
		b.logical = append(b.logical, p...)
	}
	return sectionPhys
}

// setXML appends the embedded XML document; must be called last before
// build().
func (b *fileBuilder) setXML(doc string) {
	b.xmlPhys = b.physOffset()
	b.xmlLen = uint64(len(doc))
	b.logical = append(b.logical, doc...)
}

// build patches the header and returns the physical file image.
func (b *fileBuilder) build() []byte {
	logicalSize := b.pageSize - 4
	pages := (uint64(len(b.logical)) + logicalSize - 1) / logicalSize
	physLen := pages * b.pageSize

	h := b.logical[:48]
	copy(h, "ASTM-E57")
	binary.LittleEndian.PutUint32(h[8:], 1)  // major
	binary.LittleEndian.PutUint32(h[12:], 0) // minor
	binary.LittleEndian.PutUint64(h[16:], physLen)
	binary.LittleEndian.PutUint64(h[24:], b.xmlPhys)
	binary.LittleEndian.PutUint64(h[32:], b.xmlLen)
	binary.LittleEndian.PutUint64(h[40:], b.pageSize)

	var out []byte
	for off := uint64(0); off < uint64(len(b.logical)); off += logicalSize {
		end := off + logicalSize
		if end > uint64(len(b.logical)) {
			end = uint64(len(b.logical))
		}
		payload := make([]byte, logicalSize)
		copy(payload, b.logical[off:end])
		crc := binpkg.PageCRC(payload)
		out = append(out, payload...)
		out = append(out, crc[:]...)
	}
	return out
}

// buildDataPacket builds a data packet from per-stream payloads. The
// packet is padded to at least minSize bytes, then up to a multiple of 4.
func buildDataPacket(minSize int, streams ...[]byte) []byte {
	payload := 0
	for _, s := range streams {
		payload += len(s)
	}
	size := 6 + 2*len(streams) + payload
	if size < minSize {
		size = minSize
	}
	for size%4 != 0 {
		size++
	}
	p := make([]byte, size)
	p[0] = 1 // data
	binary.LittleEndian.PutUint16(p[2:], uint16(size-1))
	binary.LittleEndian.PutUint16(p[4:], uint16(len(streams)))
	off := 6 + 2*len(streams)
	for i, s := range streams {
		binary.LittleEndian.PutUint16(p[6+2*i:], uint16(len(s)))
		copy(p[off:], s)
		off += len(s)
	}
	return p
}

// packBits packs raw values LSB-first at the given bit width.
func packBits(width uint, values []uint64) []byte {
	bits := width * uint(len(values))
	out := make([]byte, (bits+7)/8)
	pos := uint(0)
	for _, v := range values {
		for i := uint(0); i < width; i++ {
			if v&(1<<i) != 0 {
				out[(pos+i)/8] |= 1 << ((pos + i) % 8)
			}
		}
		pos += width
	}
	return out
}

// packFloats encodes float32 values little-endian.
func packFloats(values []float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}
