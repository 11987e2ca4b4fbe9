package packet

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	binpkg "github.com/lidarlab/go-e57/internal/binary"
)

// countingReaderAt wraps a byte slice and counts ReadAt calls.
type countingReaderAt struct {
	data  []byte
	reads int
}

func (c *countingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	c.reads++
	if off >= int64(len(c.data)) {
		return 0, nil
	}
	return copy(p, c.data[off:]), nil
}

const testPageSize = 64

// pagify lays a logical byte stream out as CRC-terminated pages.
func pagify(logical []byte) []byte {
	logicalSize := testPageSize - 4
	var out []byte
	for off := 0; off < len(logical); off += logicalSize {
		end := off + logicalSize
		if end > len(logical) {
			end = len(logical)
		}
		payload := make([]byte, logicalSize)
		copy(payload, logical[off:end])
		crc := binpkg.PageCRC(payload)
		out = append(out, payload...)
		out = append(out, crc[:]...)
	}
	return out
}

// dataPacket builds a data packet from per-stream payloads, padding the
// size to a multiple of 4.
func dataPacket(streams ...[]byte) []byte {
	payload := 0
	for _, s := range streams {
		payload += len(s)
	}
	size := 6 + 2*len(streams) + payload
	for size%4 != 0 {
		size++
	}
	p := make([]byte, size)
	p[0] = byte(KindData)
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

func newTestReader(t *testing.T, logical []byte, streams int) (*Reader, *countingReaderAt) {
	t.Helper()
	src := &countingReaderAt{data: pagify(logical)}
	pgr := binpkg.NewPager(src, uint64(len(src.data)), testPageSize, zerolog.Nop())
	return NewReader(pgr, zerolog.Nop(), streams), src
}

func TestReadDataPacket(t *testing.T) {
	s0 := []byte{1, 2, 3, 4, 5}
	s1 := []byte{9, 8}
	r, _ := newTestReader(t, dataPacket(s0, s1), 2)

	p, err := r.Read(0)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if p.Kind != KindData {
		t.Fatalf("Kind = %v, want data", p.Kind)
	}
	if len(p.StreamOff) != 3 {
		t.Fatalf("StreamOff length = %d, want 3", len(p.StreamOff))
	}
	if p.StreamOff[0] != 10 || p.StreamOff[1] != 15 || p.StreamOff[2] != 17 {
		t.Errorf("StreamOff = %v, want [10 15 17]", p.StreamOff)
	}
	if p.BitsAvailable(0) != 40 || p.BitsAvailable(1) != 16 {
		t.Errorf("BitsAvailable = %d, %d, want 40, 16", p.BitsAvailable(0), p.BitsAvailable(1))
	}
	for i, want := range s0 {
		if p.Data[int(p.StreamOff[0])+i] != want {
			t.Errorf("stream 0 byte %d = %d, want %d", i, p.Data[int(p.StreamOff[0])+i], want)
		}
	}
}

func TestReadPacketStraddlesPages(t *testing.T) {
	// One data packet larger than a page payload.
	s0 := make([]byte, 150)
	for i := range s0 {
		s0[i] = byte(i)
	}
	r, _ := newTestReader(t, dataPacket(s0), 1)

	p, err := r.Read(0)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	start := int(p.StreamOff[0])
	for i, want := range s0 {
		if p.Data[start+i] != want {
			t.Fatalf("stream byte %d = %d, want %d", i, p.Data[start+i], want)
		}
	}
}

func TestReadPacketCache(t *testing.T) {
	r, src := newTestReader(t, dataPacket([]byte{1, 2, 3}), 1)

	first, err := r.Read(0)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	reads := src.reads
	second, err := r.Read(0)
	if err != nil {
		t.Fatalf("cached Read failed: %v", err)
	}
	if src.reads != reads {
		t.Errorf("cached read hit the byte source (%d extra reads)", src.reads-reads)
	}
	if second.Next != first.Next || second.Size != first.Size {
		t.Errorf("cached packet differs: %+v vs %+v", second, first)
	}
}

func TestReadEmptyPacket(t *testing.T) {
	raw := []byte{byte(KindEmpty), 0, 3, 0} // sizeMinusOne=3
	r, _ := newTestReader(t, raw, 1)

	p, err := r.Read(0)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if p.Kind != KindEmpty || p.Size != 4 {
		t.Errorf("packet = %v size %d, want empty size 4", p.Kind, p.Size)
	}
}

func TestReadIndexPacket(t *testing.T) {
	size := 16 + 2*16
	raw := make([]byte, size)
	raw[0] = byte(KindIndex)
	binary.LittleEndian.PutUint16(raw[2:], uint16(size-1))
	binary.LittleEndian.PutUint16(raw[4:], 2) // entryCount
	raw[6] = 0                                // indexLevel
	r, _ := newTestReader(t, raw, 1)

	p, err := r.Read(0)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if p.Kind != KindIndex {
		t.Errorf("Kind = %v, want index", p.Kind)
	}
}

func TestReadMalformedPackets(t *testing.T) {
	le16 := func(v int) (byte, byte) { return byte(v), byte(v >> 8) }

	sizeNotMul4 := dataPacket([]byte{1, 2, 3})
	lo, hi := le16(len(sizeNotMul4) + 2 - 1)
	sizeNotMul4 = append(sizeNotMul4, 0, 0)
	sizeNotMul4[2], sizeNotMul4[3] = lo, hi

	zeroStreams := make([]byte, 8)
	zeroStreams[0] = byte(KindData)
	zeroStreams[2], zeroStreams[3] = le16(8 - 1)

	streamTooLong := dataPacket([]byte{1, 2, 3})
	streamTooLong[6], streamTooLong[7] = le16(200)

	badType := []byte{9, 0, 3, 0}

	tests := []struct {
		name    string
		raw     []byte
		streams int
	}{
		{"size below prefix", []byte{byte(KindEmpty), 0xFF, 1, 0}, 1},
		{"size not multiple of 4", sizeNotMul4, 1},
		{"zero byte streams", zeroStreams, 1},
		{"stream count mismatch", dataPacket([]byte{1}, []byte{2}), 3},
		{"stream spans outside packet", streamTooLong, 1},
		{"unrecognized type", badType, 1},
		{"index entries exceed size", func() []byte {
			raw := make([]byte, 16)
			raw[0] = byte(KindIndex)
			binary.LittleEndian.PutUint16(raw[2:], 15)
			binary.LittleEndian.PutUint16(raw[4:], 99)
			return raw
		}(), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestReader(t, tt.raw, tt.streams)
			if _, err := r.Read(0); !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestReadSectionHeader(t *testing.T) {
	raw := make([]byte, SectionHeaderSize)
	raw[0] = SectionID
	binary.LittleEndian.PutUint64(raw[8:], 500)  // logical length
	binary.LittleEndian.PutUint64(raw[16:], 32)  // data offset
	binary.LittleEndian.PutUint64(raw[24:], 0)   // index offset
	src := &countingReaderAt{data: pagify(raw)}
	pgr := binpkg.NewPager(src, uint64(len(src.data)), testPageSize, zerolog.Nop())

	sh, err := ReadSectionHeader(pgr, zerolog.Nop(), 0)
	if err != nil {
		t.Fatalf("ReadSectionHeader failed: %v", err)
	}
	if sh.LogicalLength != 500 || sh.DataPhysicalOffset != 32 {
		t.Errorf("section = %+v", sh)
	}
	// Logical end 500 maps to page 8 (60 logical bytes per page), in-page 20.
	wantEnd := uint64(8*64 + 20)
	if sh.PhysicalEnd != wantEnd {
		t.Errorf("PhysicalEnd = %d, want %d", sh.PhysicalEnd, wantEnd)
	}

	raw[0] = 7
	src2 := &countingReaderAt{data: pagify(raw)}
	pgr2 := binpkg.NewPager(src2, uint64(len(src2.data)), testPageSize, zerolog.Nop())
	if _, err := ReadSectionHeader(pgr2, zerolog.Nop(), 0); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for bad section id, got %v", err)
	}
}
