package e57

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/lidarlab/go-e57/internal/binary"
	"github.com/lidarlab/go-e57/internal/header"
	"github.com/lidarlab/go-e57/internal/proto"
	"github.com/lidarlab/go-e57/internal/xmlbind"
)

// Header is the parsed E57 file header.
type Header = header.Header

// File represents an open E57 file. A File owns one pager whose page
// scratch buffer every read shares, so only one ReadPoints call may be
// active per File at a time; distinct File instances are independent. The
// packet scratch buffer is not kept on the File: each ReadPoints call
// allocates its own.
type File struct {
	src  io.ReaderAt
	size uint64
	log  zerolog.Logger

	header header.Header
	pager  *binary.Pager
	points []proto.PointSet

	decoding bool
	closed   bool
}

// Open reads the file header and the embedded XML document from src and
// returns a File describing the point sets it contains. src must serve
// absolute-offset reads for the whole physical file of the given size.
func Open(src io.ReaderAt, size uint64, log zerolog.Logger) (*File, error) {
	raw := make([]byte, header.Size)
	if size < uint64(header.Size) {
		return nil, fmt.Errorf("%w: file smaller than the e57 header", ErrHeaderInvalid)
	}
	// The header occupies the start of page zero and is read raw; its
	// bytes are still covered by that page's checksum on later reads.
	if n, err := src.ReadAt(raw, 0); n < len(raw) {
		return nil, fmt.Errorf("%w: reading header: %v", ErrShortRead, err)
	}

	h, err := header.Parse(raw)
	if err != nil {
		log.Error().Err(err).Msg("header parse failed")
		return nil, err
	}
	if h.FilePhysicalLength > size {
		return nil, fmt.Errorf("%w: physical length %d exceeds file size %d", ErrHeaderInvalid, h.FilePhysicalLength, size)
	}
	if h.Major != 1 {
		log.Warn().Uint32("major", h.Major).Uint32("minor", h.Minor).Msg("unexpected format version")
	}
	log.Debug().
		Uint32("major", h.Major).Uint32("minor", h.Minor).
		Uint64("pageSize", h.PageSize).
		Uint64("xmlOffset", h.XMLPhysicalOffset).
		Uint64("xmlLength", h.XMLLogicalLength).
		Msg("e57 header")

	f := &File{
		src:    src,
		size:   size,
		log:    log,
		header: h,
		pager:  binary.NewPager(src, size, h.PageSize, log),
	}

	xmlBytes, err := f.RawXML()
	if err != nil {
		return nil, err
	}
	sets, err := xmlbind.Parse(log, xmlBytes)
	if err != nil {
		log.Error().Err(err).Msg("xml parse failed")
		return nil, err
	}
	f.points = sets
	return f, nil
}

// Close releases the file. The underlying byte source is the caller's to
// close; descriptor views obtained from this File stay readable but no
// further decoding is possible.
func (f *File) Close() error {
	f.closed = true
	return nil
}

// Version returns the format version from the file header.
func (f *File) Version() (major, minor uint32) {
	return f.header.Major, f.header.Minor
}

// Header returns the parsed file header.
func (f *File) Header() Header {
	return f.header
}

// PointSets lists the point sets declared by the embedded XML document,
// in document order.
func (f *File) PointSets() []PointSet {
	return f.points
}

// RawXML reads the embedded XML document bytes.
func (f *File) RawXML() ([]byte, error) {
	if f.closed {
		return nil, ErrClosed
	}
	xmlBytes := make([]byte, f.header.XMLLogicalLength)
	offset := f.header.XMLPhysicalOffset
	if err := f.pager.Read(xmlBytes, &offset); err != nil {
		return nil, fmt.Errorf("reading xml document: %w", err)
	}
	return xmlBytes, nil
}
