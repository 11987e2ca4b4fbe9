package e57

import (
	"errors"

	"github.com/lidarlab/go-e57/internal/binary"
	"github.com/lidarlab/go-e57/internal/header"
	"github.com/lidarlab/go-e57/internal/packet"
	"github.com/lidarlab/go-e57/internal/proto"
	"github.com/lidarlab/go-e57/internal/vector"
	"github.com/lidarlab/go-e57/internal/xmlbind"
)

// Error kinds surfaced by Open and ReadPoints. All errors are wrapped, so
// callers match them with errors.Is.
var (
	ErrHeaderInvalid     = header.ErrInvalid
	ErrPageCRC           = binary.ErrPageCRC
	ErrShortRead         = binary.ErrShortRead
	ErrXMLSyntax         = xmlbind.ErrSyntax
	ErrXMLSemantic       = xmlbind.ErrSemantic
	ErrDescriptorInvalid = proto.ErrDescriptor
	ErrPacketMalformed   = packet.ErrMalformed
	ErrSectionTruncated  = vector.ErrTruncated
	ErrConsumerStop      = vector.ErrConsumerStop

	ErrClosed      = errors.New("e57: file is closed")
	ErrUnsupported = errors.New("e57: unsupported feature")
)
