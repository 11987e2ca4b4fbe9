// Package e57 provides a pure Go reader for the ASTM E57 3D imaging data
// format.
//
// An E57 file is a container mixing a small binary header, an embedded
// XML document describing the data, and one or more CompressedVector
// sections holding bit-packed point records behind CRC-protected pages.
// Open parses the header and XML into point-set descriptors; ReadPoints
// streams a point set's records into a caller-supplied interleaved
// float32 buffer, batch by batch.
//
// All decoded values are delivered as 32-bit floats regardless of the
// component's declared type; this is a deliberate simplification of the
// format's type surface.
package e57
