package binary

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// castagnoli is the CRC-32C table (polynomial 0x1EDC6F41, reflected form
// 0x82F63B78). crc32.Checksum applies the 0xFFFFFFFF initial value and
// final XOR that the page checksums use.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// checkPage validates the trailing checksum of one physical page against
// a CRC-32C over its payload. The on-page reference bytes are stored in
// big-endian order; this matches existing producers and is a stable
// contract of the format.
func checkPage(page []byte, logicalSize uint64) error {
	got := crc32.Checksum(page[:logicalSize], castagnoli)
	want := binary.BigEndian.Uint32(page[logicalSize:])
	if got != want {
		return fmt.Errorf("%w: expected 0x%08x, got 0x%08x", ErrPageCRC, want, got)
	}
	return nil
}

// PageCRC computes the checksum of a page payload in the on-page byte
// order. Exposed for tests and tooling that synthesize page images.
func PageCRC(payload []byte) [4]byte {
	var ref [4]byte
	binary.BigEndian.PutUint32(ref[:], crc32.Checksum(payload, castagnoli))
	return ref
}
