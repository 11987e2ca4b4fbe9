// Package packet reads the CompressedVector sections of an E57 file:
// the 32-byte section header and the index/data/empty packets that make
// up a section's payload.
package packet

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lidarlab/go-e57/internal/binary"
)

// Errors reported by the packet reader.
var (
	ErrMalformed = errors.New("malformed packet")
)

// Packet kinds as encoded in the packet prefix.
type Kind uint8

const (
	KindIndex Kind = 0
	KindData  Kind = 1
	KindEmpty Kind = 2
)

// String returns a display name for the packet kind.
func (k Kind) String() string {
	switch k {
	case KindIndex:
		return "index"
	case KindData:
		return "data"
	case KindEmpty:
		return "empty"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

const (
	// MaxSize is the largest possible packet; sizes are encoded as a
	// 16-bit size-minus-one.
	MaxSize = 1 << 16

	// scratchSlack pads the scratch buffer so the bit-pack decoder can
	// issue an unaligned 64-bit load at any byte offset inside a packet.
	scratchSlack = 8

	// SectionID is the section identifier of a CompressedVector section.
	SectionID = 1

	// SectionHeaderSize is the byte length of a section header.
	SectionHeaderSize = 8 + 3*8

	prefixSize      = 4
	indexHeaderSize = 16
	indexEntrySize  = 16
	dataHeaderSize  = 6
)

// SectionHeader is the parsed 32-byte CompressedVector section header.
type SectionHeader struct {
	// LogicalLength is the section length in logical bytes, including the
	// section header itself.
	LogicalLength uint64

	// DataPhysicalOffset is the physical offset of the first data packet.
	DataPhysicalOffset uint64

	// IndexPhysicalOffset is the physical offset of the first index packet.
	IndexPhysicalOffset uint64

	// PhysicalEnd is the physical offset just past the section, derived
	// from LogicalLength through the page mapping.
	PhysicalEnd uint64
}

// ReadSectionHeader reads and validates the section header at the given
// physical offset.
func ReadSectionHeader(pgr *binary.Pager, log zerolog.Logger, offset uint64) (SectionHeader, error) {
	var sh SectionHeader
	var raw [SectionHeaderSize]byte
	cursor := offset
	if err := pgr.Read(raw[:], &cursor); err != nil {
		return sh, err
	}
	if raw[0] != SectionID {
		return sh, fmt.Errorf("%w: section id %d, want %d", ErrMalformed, raw[0], SectionID)
	}

	sh.LogicalLength = binary.Uint64LE(raw[:], 8)
	sh.DataPhysicalOffset = binary.Uint64LE(raw[:], 16)
	sh.IndexPhysicalOffset = binary.Uint64LE(raw[:], 24)

	logicalEnd := pgr.LogicalFromPhysical(offset) + sh.LogicalLength
	sh.PhysicalEnd = pgr.PhysicalFromLogical(logicalEnd)

	log.Debug().
		Uint64("logicalLength", sh.LogicalLength).
		Uint64("dataOffset", sh.DataPhysicalOffset).
		Uint64("indexOffset", sh.IndexPhysicalOffset).
		Uint64("physicalEnd", sh.PhysicalEnd).
		Msg("compressed vector section")
	return sh, nil
}

// Packet is a view of the most recently read packet. Data aliases the
// reader's scratch buffer and is only valid until the next cache miss.
type Packet struct {
	Kind Kind
	Size int

	// Next is the physical offset just past the packet.
	Next uint64

	// Data is the full packet image, padded with 8 bytes of slack.
	Data []byte

	// StreamOff holds, for data packets, one absolute scratch offset per
	// byte stream plus a trailing sentinel.
	StreamOff []uint32
}

// BitsAvailable returns the number of payload bits stream i carries in
// this data packet.
func (p *Packet) BitsAvailable(i int) uint32 {
	return 8 * (p.StreamOff[i+1] - p.StreamOff[i])
}

// Reader reads packets through a Pager into a single scratch buffer and
// caches the most recently read packet by its starting offset. The
// record scheduler re-requests the same packet once per stream per
// batch; the cache makes those repeats I/O-free.
type Reader struct {
	pgr     *binary.Pager
	log     zerolog.Logger
	streams int

	scratch []byte

	cached Packet
	offset uint64
	valid  bool
}

// NewReader creates a packet reader for a point set with the given number
// of component streams.
func NewReader(pgr *binary.Pager, log zerolog.Logger, streams int) *Reader {
	return &Reader{
		pgr:     pgr,
		log:     log,
		streams: streams,
		scratch: make([]byte, MaxSize+scratchSlack),
	}
}

// Read returns the packet starting at the given physical offset, reading
// and validating it unless it is the cached one.
func (r *Reader) Read(offset uint64) (Packet, error) {
	if r.valid && r.offset == offset {
		return r.cached, nil
	}
	r.valid = false

	cursor := offset
	if err := r.pgr.Read(r.scratch[:prefixSize], &cursor); err != nil {
		return Packet{}, err
	}
	kind := Kind(r.scratch[0])
	size := int(binary.Uint16LE(r.scratch, 2)) + 1
	if size < prefixSize {
		return Packet{}, fmt.Errorf("%w: size %d is less than the packet prefix", ErrMalformed, size)
	}
	if err := r.pgr.Read(r.scratch[prefixSize:size], &cursor); err != nil {
		return Packet{}, err
	}

	p := Packet{
		Kind: kind,
		Size: size,
		Next: cursor,
		Data: r.scratch,
	}

	switch kind {
	case KindIndex:
		if err := r.validateIndex(&p); err != nil {
			return Packet{}, err
		}
	case KindData:
		if err := r.validateData(&p); err != nil {
			return Packet{}, err
		}
	case KindEmpty:
		r.log.Trace().Int("size", size).Msg("empty packet")
	default:
		return Packet{}, fmt.Errorf("%w: unrecognized packet type 0x%x", ErrMalformed, uint8(kind))
	}

	r.cached = p
	r.offset = offset
	r.valid = true
	return p, nil
}

// validateIndex checks the entry table of an index packet. Index packets
// are validated and otherwise ignored by the decoder.
func (r *Reader) validateIndex(p *Packet) error {
	if p.Size < indexHeaderSize {
		return fmt.Errorf("%w: index packet size %d is less than its header", ErrMalformed, p.Size)
	}
	entryCount := int(binary.Uint16LE(p.Data, 4))
	indexLevel := p.Data[6]
	if indexHeaderSize+entryCount*indexEntrySize > p.Size {
		return fmt.Errorf("%w: %d index entries exceed packet size %d", ErrMalformed, entryCount, p.Size)
	}
	r.log.Trace().Int("size", p.Size).Int("entries", entryCount).Uint8("level", indexLevel).Msg("index packet")
	return nil
}

// validateData checks a data packet's stream table and builds the
// per-stream offset array.
func (r *Reader) validateData(p *Packet) error {
	if p.Size%4 != 0 {
		return fmt.Errorf("%w: data packet size %d is not a multiple of 4", ErrMalformed, p.Size)
	}
	if p.Size < dataHeaderSize {
		return fmt.Errorf("%w: data packet size %d is less than its header", ErrMalformed, p.Size)
	}
	count := int(binary.Uint16LE(p.Data, 4))
	if count == 0 {
		return fmt.Errorf("%w: data packet has no byte streams", ErrMalformed)
	}
	if count != r.streams {
		return fmt.Errorf("%w: data packet has %d byte streams, point set has %d components", ErrMalformed, count, r.streams)
	}
	if dataHeaderSize+2*count > p.Size {
		return fmt.Errorf("%w: stream length table exceeds packet size %d", ErrMalformed, p.Size)
	}

	offsets := make([]uint32, count+1)
	off := uint32(dataHeaderSize + 2*count)
	offsets[0] = off
	for i := 0; i < count; i++ {
		off += uint32(binary.Uint16LE(p.Data, dataHeaderSize+2*i))
		if off > uint32(p.Size) {
			return fmt.Errorf("%w: byte stream %d spans outside the packet", ErrMalformed, i)
		}
		offsets[i+1] = off
	}

	p.StreamOff = offsets
	r.log.Trace().Int("size", p.Size).Int("streams", count).Msg("data packet")
	return nil
}
