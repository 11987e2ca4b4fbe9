// Package header handles parsing of the fixed-size E57 file header.
//
// The header is the entry point for any E57 file: it carries the format
// version, the location of the embedded XML document, and the page size
// from which the whole checksummed page geometry derives.
package header

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

// E57 file signature, first eight bytes of every conformant file.
var Signature = []byte("ASTM-E57")

// Size is the byte length of the file header.
const Size = 8 + 2*4 + 4*8

// ErrInvalid is returned for structurally invalid headers.
var ErrInvalid = errors.New("invalid e57 header")

// Header contains the parsed file header fields.
type Header struct {
	// Major and Minor are the format version.
	Major uint32
	Minor uint32

	// FilePhysicalLength is the file length in physical bytes.
	FilePhysicalLength uint64

	// XMLPhysicalOffset is the physical offset of the embedded XML document.
	XMLPhysicalOffset uint64

	// XMLLogicalLength is the XML document length in logical bytes.
	XMLLogicalLength uint64

	// PageSize is the physical page size; always a power of two.
	PageSize uint64
}

// Page is the geometry derived from the header's page size. The last four
// bytes of each page hold a CRC over the preceding LogicalSize bytes.
type Page struct {
	Size        uint64
	LogicalSize uint64
	Mask        uint64
	Shift       uint
}

// Parse decodes and validates the raw header bytes.
func Parse(raw []byte) (Header, error) {
	var h Header
	if len(raw) < Size {
		return h, fmt.Errorf("%w: %d bytes, need %d", ErrInvalid, len(raw), Size)
	}
	if !bytes.Equal(raw[:8], Signature) {
		return h, fmt.Errorf("%w: wrong file signature", ErrInvalid)
	}

	h.Major = binary.LittleEndian.Uint32(raw[8:])
	h.Minor = binary.LittleEndian.Uint32(raw[12:])
	h.FilePhysicalLength = binary.LittleEndian.Uint64(raw[16:])
	h.XMLPhysicalOffset = binary.LittleEndian.Uint64(raw[24:])
	h.XMLLogicalLength = binary.LittleEndian.Uint64(raw[32:])
	h.PageSize = binary.LittleEndian.Uint64(raw[40:])

	if h.PageSize == 0 || h.PageSize&(h.PageSize-1) != 0 {
		return h, fmt.Errorf("%w: page size %d is not a power of two", ErrInvalid, h.PageSize)
	}
	return h, nil
}

// Geometry derives the page geometry from the parsed header.
func (h Header) Geometry() Page {
	return Page{
		Size:        h.PageSize,
		LogicalSize: h.PageSize - 4,
		Mask:        h.PageSize - 1,
		Shift:       uint(bits.TrailingZeros64(h.PageSize)),
	}
}
