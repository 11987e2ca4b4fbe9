// Package binary provides low-level byte access for E57 file parsing:
// CRC-validated paged reads over an io.ReaderAt and little-endian load
// helpers for the packet decoder.
package binary

import (
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/rs/zerolog"
)

// Errors reported by the paged reader.
var (
	ErrShortRead     = errors.New("short read from byte source")
	ErrPageCRC       = errors.New("page checksum mismatch")
	ErrInvalidOffset = errors.New("physical offset points into page checksum")
)

// crcSize is the per-page checksum width. The last crcSize bytes of every
// page hold a CRC-32C over the preceding payload.
const crcSize = 4

// Pager reads logical byte ranges across the CRC-protected page layout of
// an E57 file. Logical offsets count only payload bytes; physical offsets
// count file bytes including the per-page checksums. A Pager holds one
// page-sized scratch buffer and no other state between calls.
type Pager struct {
	src      io.ReaderAt
	fileSize uint64

	pageSize    uint64
	logicalSize uint64
	mask        uint64
	shift       uint

	pageBuf []byte
	log     zerolog.Logger
}

// NewPager creates a Pager over src. pageSize must already be validated as
// a nonzero power of two (the header parser does this).
func NewPager(src io.ReaderAt, fileSize, pageSize uint64, log zerolog.Logger) *Pager {
	return &Pager{
		src:         src,
		fileSize:    fileSize,
		pageSize:    pageSize,
		logicalSize: pageSize - crcSize,
		mask:        pageSize - 1,
		shift:       uint(bits.TrailingZeros64(pageSize)),
		pageBuf:     make([]byte, pageSize),
		log:         log,
	}
}

// PageSize returns the physical page size in bytes.
func (p *Pager) PageSize() uint64 { return p.pageSize }

// LogicalSize returns the per-page payload size in bytes.
func (p *Pager) LogicalSize() uint64 { return p.logicalSize }

// LogicalFromPhysical converts a physical offset to its logical offset.
func (p *Pager) LogicalFromPhysical(off uint64) uint64 {
	return (off>>p.shift)*p.logicalSize + (off & p.mask)
}

// PhysicalFromLogical converts a logical offset to its physical offset.
func (p *Pager) PhysicalFromLogical(off uint64) uint64 {
	return (off/p.logicalSize)*p.pageSize + (off % p.logicalSize)
}

// ReadRaw copies len(dst) bytes at the given physical offset without page
// checksum validation. loadPage uses it to fetch whole pages before their
// checksum is verified.
func (p *Pager) ReadRaw(dst []byte, offset uint64) error {
	if offset+uint64(len(dst)) > p.fileSize {
		return fmt.Errorf("%w: offset=%d size=%d fileSize=%d", ErrShortRead, offset, len(dst), p.fileSize)
	}
	n, err := p.src.ReadAt(dst, int64(offset))
	if n < len(dst) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("%w: offset=%d size=%d: %v", ErrShortRead, offset, len(dst), err)
	}
	return nil
}

// Read copies len(dst) logical bytes into dst, starting at *physicalOffset
// and validating the checksum of every page it touches. On return
// *physicalOffset points just past the last byte consumed; if that lands
// exactly on a page checksum the offset is bumped past it so subsequent
// reads resume on a valid logical position.
func (p *Pager) Read(dst []byte, physicalOffset *uint64) error {
	page := *physicalOffset >> p.shift
	inPage := *physicalOffset & p.mask
	if inPage >= p.logicalSize {
		return fmt.Errorf("%w: offset=%d", ErrInvalidOffset, *physicalOffset)
	}

	for len(dst) > 0 {
		if err := p.loadPage(page); err != nil {
			return err
		}
		n := p.logicalSize - inPage
		if uint64(len(dst)) < n {
			n = uint64(len(dst))
		}
		copy(dst, p.pageBuf[inPage:inPage+n])
		*physicalOffset = page*p.pageSize + inPage + n
		dst = dst[n:]
		inPage = 0
		page++
	}

	if *physicalOffset&p.mask == p.logicalSize {
		*physicalOffset += crcSize
	}
	return nil
}

// loadPage fetches one full physical page into the scratch buffer and
// validates its trailing checksum.
func (p *Pager) loadPage(page uint64) error {
	off := page * p.pageSize
	if err := p.ReadRaw(p.pageBuf, off); err != nil {
		return err
	}
	if err := checkPage(p.pageBuf, p.logicalSize); err != nil {
		p.log.Error().Uint64("page", page).Err(err).Msg("page validation failed")
		return err
	}
	return nil
}
