// Package bitpack decodes the variable-bit-width byte streams inside a
// data packet into typed scalars.
package bitpack

import (
	"github.com/lidarlab/go-e57/internal/binary"
	"github.com/lidarlab/go-e57/internal/proto"
)

// AllBitsRead marks a stream as exhausted within the current packet; the
// caller must fetch the stream's next data packet before decoding again.
const AllBitsRead = ^uint32(0)

// State is the mutable per-stream decode position.
type State struct {
	ItemsWritten int
	BitsConsumed uint32
}

// Desc locates one stream's payload inside the current packet.
type Desc struct {
	// MaxItems bounds how many items this invocation may emit.
	MaxItems int

	// StreamOffset is the stream's first byte within the packet data.
	StreamOffset uint32

	// BitsAvailable is the stream's payload size in bits.
	BitsAvailable uint32
}

// Dst describes where decoded values land in the caller's interleaved
// output buffer: item i is written to Buf[Offset+Stride*i].
type Dst struct {
	Buf    []float32
	Offset int
	Stride int
}

// Decode consumes bits from the stream described by desc, starting at the
// position in st, and writes decoded values as 32-bit floats into dst. It
// returns the updated state. Every invocation makes progress: it either
// emits at least one item or reports exhaustion by setting BitsConsumed
// to AllBitsRead (never both none). data must carry at least 8 bytes of
// slack past the packet so 64-bit loads are in bounds at the last bit
// position.
func Decode(comp *proto.Component, data []byte, desc Desc, st State, dst Dst) State {
	switch comp.Type {
	case proto.TypeInteger:
		return decodeInteger(comp, data, desc, st, dst, false)
	case proto.TypeScaledInteger:
		return decodeInteger(comp, data, desc, st, dst, true)
	case proto.TypeFloat:
		return decodeReal(data, desc, st, dst, 32)
	case proto.TypeDouble:
		return decodeReal(data, desc, st, dst, 64)
	}
	return st
}

func decodeInteger(comp *proto.Component, data []byte, desc Desc, st State, dst Dst, scaled bool) State {
	w := uint32(comp.BitWidth)
	var mask uint64
	if w == 64 {
		mask = ^uint64(0)
	} else {
		mask = uint64(1)<<w - 1
	}

	bitsConsumed := st.BitsConsumed
	item := st.ItemsWritten

	for ; item < desc.MaxItems; item++ {
		if bitsConsumed+w > desc.BitsAvailable {
			bitsConsumed = AllBitsRead
			break
		}
		byteOff := bitsConsumed >> 3
		shift := bitsConsumed & 7
		bits := (binary.Uint64LE(data, int(desc.StreamOffset+byteOff)) >> shift) & mask

		value := comp.Min + int64(bits)
		if scaled {
			dst.Buf[dst.Offset+dst.Stride*item] = float32(comp.Scale*float64(value) + comp.Offset)
		} else {
			dst.Buf[dst.Offset+dst.Stride*item] = float32(value)
		}
		bitsConsumed += w
	}
	return State{ItemsWritten: item, BitsConsumed: bitsConsumed}
}

func decodeReal(data []byte, desc Desc, st State, dst Dst, w uint32) State {
	bitsConsumed := st.BitsConsumed
	item := st.ItemsWritten

	for ; item < desc.MaxItems; item++ {
		if bitsConsumed+w > desc.BitsAvailable {
			bitsConsumed = AllBitsRead
			break
		}
		byteOff := int(desc.StreamOffset + bitsConsumed>>3)
		var value float32
		if w == 32 {
			value = binary.Float32LE(data, byteOff)
		} else {
			value = float32(binary.Float64LE(data, byteOff))
		}
		dst.Buf[dst.Offset+dst.Stride*item] = value
		bitsConsumed += w
	}
	return State{ItemsWritten: item, BitsConsumed: bitsConsumed}
}
